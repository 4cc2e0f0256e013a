package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/Shiv1431/MedAR/core/course"
	"github.com/Shiv1431/MedAR/core/user"
)

func Test_catalogApi(t *testing.T) {
	tstamp := time.Date(2021, 3, 14, 8, 0, 0, 0, time.UTC)
	courses := []course.Course{
		{ID: "c1", Title: "Human Anatomy", Description: "Bones and organs", Category: "medicine", Duration: "12 weeks", CreatedAt: tstamp},
		{ID: "c2", Title: "Pharmacology I", Description: "Drug classes", Category: "medicine", Duration: "8 weeks", CreatedAt: tstamp},
	}
	classes := []course.Class{
		{ID: "k1", CourseTitle: "Human Anatomy", TeacherName: "Prof Kalima", Schedule: "Mon 09:00", Duration: "2h", CreatedAt: tstamp},
	}
	db.SeedCatalog(courses, classes)

	student := createUser(t, user.RoleStudent, "Hero", "Mwenze", "hero.catalog@test.cd", "LolC@t123", true, user.StatusApproved)
	teacher := createUser(t, user.RoleTeacher, "Prof", "Kalima", "prof.catalog@test.cd", "LolC@t123", true, user.StatusApproved)
	admin := createUser(t, user.RoleAdmin, "Admin", "Mkubwa", "admin.catalog@test.cd", "LolC@t123", true, user.StatusApproved)

	tests := []httpTest{
		{name: "Auth required", path: "/api/student/courses", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errNotAuthenticated)},
		{
			name: "Students only", path: "/api/student/courses", token: getToken(t, teacher),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Courses", path: "/api/student/courses", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallObj(t, courses),
		},
		{
			name: "Classes", path: "/api/student/classes", token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallObj(t, classes),
		},
		{
			name: "Admin can browse too", path: "/api/student/classes", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, classes),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
