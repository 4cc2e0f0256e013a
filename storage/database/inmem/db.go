package inmemdb

import (
	"sync"

	"github.com/Shiv1431/MedAR/core/course"
	"github.com/Shiv1431/MedAR/core/user"
)

type (
	DB struct {
		user   *userTable
		course *courseTable
	}

	userTable struct {
		sync.RWMutex
		users   map[string]*user.User
		details map[string]*user.Details // keyed by user ID
	}

	courseTable struct {
		sync.RWMutex
		courses []course.Course
		classes []course.Class
	}
)

func Open() (*DB, error) {
	db := &DB{
		user: &userTable{
			users:   make(map[string]*user.User),
			details: make(map[string]*user.Details),
		},
		course: &courseTable{},
	}
	return db, nil
}

// SeedCatalog replaces the course catalog contents. Handy for tests.
func (db *DB) SeedCatalog(courses []course.Course, classes []course.Class) {
	db.course.Lock()
	defer db.course.Unlock()
	db.course.courses = courses
	db.course.classes = classes
}
