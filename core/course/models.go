package course

import "time"

// Course is a catalog entry students can browse.
type Course struct {
	ID          string    `json:"id" db:"id"`
	Title       string    `json:"title" db:"title"`
	Description string    `json:"description" db:"description"`
	Category    string    `json:"category" db:"category"`
	Duration    string    `json:"duration" db:"duration"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}

// Class is a scheduled session of a course.
type Class struct {
	ID          string    `json:"id" db:"id"`
	CourseTitle string    `json:"course_title" db:"course_title"`
	TeacherName string    `json:"teacher_name" db:"teacher_name"`
	Schedule    string    `json:"schedule" db:"schedule"`
	Duration    string    `json:"duration" db:"duration"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"` // UTC
}
