package database

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/Shiv1431/MedAR/core/course"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) course.Repository {
	return &courseRepository{db: db}
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	courses := make([]course.Course, 0)
	err := repo.db.SelectContext(
		ctx, &courses,
		`SELECT id, title, description, category, duration, created_at FROM courses ORDER BY title`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (repo *courseRepository) QueryAllClasses(ctx context.Context) ([]course.Class, error) {
	classes := make([]course.Class, 0)
	err := repo.db.SelectContext(
		ctx, &classes,
		`SELECT id, course_title, teacher_name, schedule, duration, created_at FROM classes ORDER BY schedule`,
	)
	if err != nil {
		return nil, errors.Wrap(err, "querying classes")
	}
	return classes, nil
}
