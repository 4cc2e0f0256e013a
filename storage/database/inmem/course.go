package inmemdb

import (
	"context"

	"github.com/Shiv1431/MedAR/core/course"
)

type courseRepository struct {
	db *courseTable
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) course.Repository {
	return &courseRepository{db: db.course}
}

func (repo *courseRepository) QueryAllCourses(ctx context.Context) ([]course.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]course.Course, len(repo.db.courses))
	copy(courses, repo.db.courses)
	return courses, nil
}

func (repo *courseRepository) QueryAllClasses(ctx context.Context) ([]course.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]course.Class, len(repo.db.classes))
	copy(classes, repo.db.classes)
	return classes, nil
}
