// Package access decides what a user may do before any mutating operation
// runs. Handlers and services ask Can or the ownership helpers instead of
// branching on roles themselves.
package access

import (
	"errors"
	"fmt"

	"github.com/dunamismax/smartlearn/internal/domain"
)

type Capability string

const (
	ManageSubjects   Capability = "manage_subjects"
	ManageCoursework Capability = "manage_coursework"
	Grade            Capability = "grade"
	Enroll           Capability = "enroll"
	Submit           Capability = "submit"
	ViewMaterials    Capability = "view_materials"
	AdministerUsers  Capability = "administer_users"
)

var ErrDenied = errors.New("permission denied")

var grants = map[string][]Capability{
	domain.RoleTeacher: {ManageSubjects, ManageCoursework, Grade},
	domain.RoleStudent: {Enroll, Submit, ViewMaterials},
	domain.RoleAdmin:   {ManageSubjects, ManageCoursework, Grade, AdministerUsers},
}

// Can reports whether user holds capability. Inactive accounts hold nothing.
func Can(user domain.User, capability Capability) bool {
	if !user.IsActive {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	for _, granted := range grants[user.Role] {
		if granted == capability {
			return true
		}
	}
	return false
}

func Require(user domain.User, capability Capability) error {
	if Can(user, capability) {
		return nil
	}
	return fmt.Errorf("%w: %s requires %s", ErrDenied, user.Username, capability)
}

// OwnsSubject is true for the subject's teacher and for administrators.
func OwnsSubject(user domain.User, subject domain.Subject) bool {
	if !user.IsActive {
		return false
	}
	return subject.TeacherID == user.ID || user.IsAdmin()
}

func RequireSubjectOwner(user domain.User, subject domain.Subject) error {
	if OwnsSubject(user, subject) {
		return nil
	}
	return fmt.Errorf("%w: %s does not teach %s", ErrDenied, user.Username, subject.ID)
}

func OwnsAssignment(user domain.User, assignment domain.Assignment) bool {
	if !user.IsActive {
		return false
	}
	return assignment.TeacherID == user.ID || user.IsAdmin()
}

func OwnsMaterial(user domain.User, material domain.ClassMaterial) bool {
	if !user.IsActive {
		return false
	}
	return material.TeacherID == user.ID || user.IsAdmin()
}
