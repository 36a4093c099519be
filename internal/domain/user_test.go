package domain

import "testing"

func TestNormalizeRoleDemotesNonSuperuserAdmins(t *testing.T) {
	u := User{Role: RoleAdmin}
	u.NormalizeRole()
	if u.Role != RoleStudent {
		t.Fatalf("expected student, got %s", u.Role)
	}

	su := User{Role: RoleAdmin, IsSuperuser: true}
	su.NormalizeRole()
	if su.Role != RoleAdmin {
		t.Fatalf("expected superuser to keep admin, got %s", su.Role)
	}

	unknown := User{Role: "janitor"}
	unknown.NormalizeRole()
	if unknown.Role != RoleStudent {
		t.Fatalf("expected unknown role to become student, got %s", unknown.Role)
	}
}

func TestDisplayName(t *testing.T) {
	if got := (User{Username: "jdoe", FirstName: "Jane", LastName: "Doe"}).DisplayName(); got != "Jane Doe" {
		t.Fatalf("expected full name, got %q", got)
	}
	if got := (User{Username: "jdoe", FirstName: "Jane"}).DisplayName(); got != "Jane" {
		t.Fatalf("expected first name, got %q", got)
	}
	if got := (User{Username: "jdoe", LastName: "Doe"}).DisplayName(); got != "jdoe" {
		t.Fatalf("expected username, got %q", got)
	}
}

func TestPasswordRoundTrip(t *testing.T) {
	var u User
	if err := u.SetPassword("s3cret-pass"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := u.CheckPassword("s3cret-pass"); err != nil {
		t.Fatalf("expected password to match: %v", err)
	}
	if err := u.CheckPassword("wrong"); err == nil {
		t.Fatal("expected mismatch for wrong password")
	}
}

func TestCleanProfileLists(t *testing.T) {
	edu := CleanEducation([]Education{
		{Degree: "BSc", School: "MIT", Year: "2019"},
		{Degree: "MSc", School: "", Year: "2021"},
		{Degree: " ", School: "X", Year: "2020"},
	})
	if len(edu) != 1 || edu[0].School != "MIT" {
		t.Fatalf("expected one complete entry, got %+v", edu)
	}

	skills := CleanStrings([]string{"go", "  ", "", " sql "})
	if len(skills) != 2 || skills[1] != "sql" {
		t.Fatalf("unexpected skills %v", skills)
	}
}
