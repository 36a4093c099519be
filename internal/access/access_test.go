package access

import (
	"errors"
	"testing"

	"github.com/dunamismax/smartlearn/internal/domain"
)

func TestCanByRole(t *testing.T) {
	teacher := domain.User{ID: "t", Role: domain.RoleTeacher, IsActive: true}
	student := domain.User{ID: "s", Role: domain.RoleStudent, IsActive: true}
	admin := domain.User{ID: "a", Role: domain.RoleAdmin, IsActive: true}

	if !Can(teacher, ManageSubjects) || !Can(teacher, Grade) {
		t.Fatal("expected teacher to manage subjects and grade")
	}
	if Can(teacher, Submit) || Can(teacher, Enroll) {
		t.Fatal("teacher must not submit or enroll")
	}
	if !Can(student, Submit) || !Can(student, Enroll) || !Can(student, ViewMaterials) {
		t.Fatal("expected student capabilities")
	}
	if Can(student, ManageCoursework) || Can(student, AdministerUsers) {
		t.Fatal("student must not manage coursework or users")
	}
	if !Can(admin, AdministerUsers) {
		t.Fatal("expected admin to administer users")
	}
}

func TestInactiveUserHoldsNothing(t *testing.T) {
	user := domain.User{ID: "t", Role: domain.RoleTeacher, IsSuperuser: true}
	if Can(user, ManageSubjects) {
		t.Fatal("inactive user must not hold capabilities")
	}
	if err := Require(user, ManageSubjects); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied, got %v", err)
	}
}

func TestSuperuserHoldsEverything(t *testing.T) {
	root := domain.User{ID: "root", Role: domain.RoleStudent, IsSuperuser: true, IsActive: true}
	if !Can(root, AdministerUsers) || !Can(root, Grade) {
		t.Fatal("expected superuser to hold every capability")
	}
}

func TestOwnership(t *testing.T) {
	owner := domain.User{ID: "t1", Role: domain.RoleTeacher, IsActive: true}
	other := domain.User{ID: "t2", Role: domain.RoleTeacher, IsActive: true}
	admin := domain.User{ID: "a", Role: domain.RoleAdmin, IsActive: true}
	subject := domain.Subject{ID: "math", TeacherID: "t1"}

	if !OwnsSubject(owner, subject) || !OwnsSubject(admin, subject) {
		t.Fatal("expected owner and admin to own subject")
	}
	if err := RequireSubjectOwner(other, subject); !errors.Is(err, ErrDenied) {
		t.Fatalf("expected ErrDenied for another teacher, got %v", err)
	}
	if !OwnsAssignment(owner, domain.Assignment{TeacherID: "t1"}) || OwnsAssignment(other, domain.Assignment{TeacherID: "t1"}) {
		t.Fatal("unexpected assignment ownership")
	}
	if !OwnsMaterial(owner, domain.ClassMaterial{TeacherID: "t1"}) || OwnsMaterial(other, domain.ClassMaterial{TeacherID: "t1"}) {
		t.Fatal("unexpected material ownership")
	}
}
