package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/dunamismax/smartlearn/internal/domain"
	"github.com/lib/pq"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS users (
	id TEXT PRIMARY KEY,
	username TEXT NOT NULL,
	email TEXT NOT NULL DEFAULT '',
	password_hash BYTEA NOT NULL,
	role TEXT NOT NULL,
	is_superuser BOOLEAN NOT NULL DEFAULT FALSE,
	is_active BOOLEAN NOT NULL DEFAULT TRUE,
	first_name TEXT NOT NULL DEFAULT '',
	last_name TEXT NOT NULL DEFAULT '',
	bio TEXT NOT NULL DEFAULT '',
	profession TEXT NOT NULL DEFAULT '',
	phone_number TEXT NOT NULL DEFAULT '',
	education JSONB NOT NULL DEFAULT '[]',
	expertise JSONB NOT NULL DEFAULT '[]',
	interests JSONB NOT NULL DEFAULT '[]',
	profile_picture_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS users_username_key ON users (LOWER(username));
CREATE UNIQUE INDEX IF NOT EXISTS users_email_key ON users (LOWER(email)) WHERE email <> '';

CREATE TABLE IF NOT EXISTS subjects (
	id TEXT PRIMARY KEY,
	teacher_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	title VARCHAR(200) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS enrollments (
	student_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	subject_id TEXT NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
	date_enrolled TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, subject_id)
);

CREATE TABLE IF NOT EXISTS assignments (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
	teacher_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	title VARCHAR(255) NOT NULL,
	description TEXT NOT NULL,
	due_date TIMESTAMPTZ NOT NULL,
	attachment_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS submissions (
	id TEXT PRIMARY KEY,
	assignment_id TEXT NOT NULL REFERENCES assignments (id) ON DELETE CASCADE,
	student_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	submitted_at TIMESTAMPTZ NOT NULL,
	file_key TEXT NOT NULL DEFAULT '',
	comment TEXT NOT NULL DEFAULT '',
	answer TEXT NOT NULL DEFAULT '',
	grade DOUBLE PRECISION,
	feedback TEXT NOT NULL DEFAULT '',
	UNIQUE (assignment_id, student_id)
);

CREATE TABLE IF NOT EXISTS class_materials (
	id TEXT PRIMARY KEY,
	subject_id TEXT NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
	teacher_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	title VARCHAR(255) NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	file_key TEXT NOT NULL DEFAULT '',
	video_url TEXT NOT NULL DEFAULT '',
	external_link TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS material_views (
	student_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	material_id TEXT NOT NULL REFERENCES class_materials (id) ON DELETE CASCADE,
	subject_id TEXT NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
	viewed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, material_id)
);

CREATE TABLE IF NOT EXISTS course_progress (
	student_id TEXT NOT NULL REFERENCES users (id) ON DELETE CASCADE,
	subject_id TEXT NOT NULL REFERENCES subjects (id) ON DELETE CASCADE,
	assignments_completed INTEGER NOT NULL DEFAULT 0,
	total_assignments INTEGER NOT NULL DEFAULT 0,
	materials_viewed INTEGER NOT NULL DEFAULT 0,
	total_materials INTEGER NOT NULL DEFAULT 0,
	is_completed BOOLEAN NOT NULL DEFAULT FALSE,
	completion_date TIMESTAMPTZ,
	progress_percentage INTEGER NOT NULL DEFAULT 0,
	last_activity TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (student_id, subject_id)
);
`

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// classify maps driver errors onto the package sentinels.
func classify(op string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", op, ErrConflict)
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func expectAffected(op string, res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}

const userColumns = `id, username, email, password_hash, role, is_superuser, is_active, first_name, last_name,
	bio, profession, phone_number, education, expertise, interests, profile_picture_key, created_at, updated_at`

func (s *PostgresStore) CreateUser(ctx context.Context, user domain.User) error {
	education, expertise, interests, err := marshalProfileLists(user)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO users (`+userColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsSuperuser,
		user.IsActive,
		user.FirstName,
		user.LastName,
		user.Bio,
		user.Profession,
		user.PhoneNumber,
		education,
		expertise,
		interests,
		user.ProfilePictureKey,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return classify("insert user", err)
	}
	return nil
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (domain.User, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username)
	return scanUser(row)
}

func (s *PostgresStore) UpdateUser(ctx context.Context, user domain.User) error {
	education, expertise, interests, err := marshalProfileLists(user)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(
		ctx,
		`UPDATE users
		 SET username = $2, email = $3, password_hash = $4, role = $5, is_superuser = $6, is_active = $7,
		     first_name = $8, last_name = $9, bio = $10, profession = $11, phone_number = $12,
		     education = $13, expertise = $14, interests = $15, profile_picture_key = $16, updated_at = $17
		 WHERE id = $1`,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.IsSuperuser,
		user.IsActive,
		user.FirstName,
		user.LastName,
		user.Bio,
		user.Profession,
		user.PhoneNumber,
		education,
		expertise,
		interests,
		user.ProfilePictureKey,
		user.UpdatedAt,
	)
	if err != nil {
		return classify("update user", err)
	}
	return expectAffected("update user", res)
}

func marshalProfileLists(user domain.User) (education, expertise, interests []byte, err error) {
	if education, err = json.Marshal(nonNil(user.Education)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal education: %w", err)
	}
	if expertise, err = json.Marshal(nonNil(user.Expertise)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal expertise: %w", err)
	}
	if interests, err = json.Marshal(nonNil(user.Interests)); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal interests: %w", err)
	}
	return education, expertise, interests, nil
}

func nonNil[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, bool, error) {
	var (
		user                            domain.User
		education, expertise, interests []byte
	)
	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.IsSuperuser,
		&user.IsActive,
		&user.FirstName,
		&user.LastName,
		&user.Bio,
		&user.Profession,
		&user.PhoneNumber,
		&education,
		&expertise,
		&interests,
		&user.ProfilePictureKey,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("query user: %w", err)
	}

	if err := json.Unmarshal(education, &user.Education); err != nil {
		return domain.User{}, false, fmt.Errorf("unmarshal education: %w", err)
	}
	if err := json.Unmarshal(expertise, &user.Expertise); err != nil {
		return domain.User{}, false, fmt.Errorf("unmarshal expertise: %w", err)
	}
	if err := json.Unmarshal(interests, &user.Interests); err != nil {
		return domain.User{}, false, fmt.Errorf("unmarshal interests: %w", err)
	}
	return user, true, nil
}

func (s *PostgresStore) CreateSubject(ctx context.Context, subject domain.Subject) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subjects (id, teacher_id, title, description, created_at) VALUES ($1, $2, $3, $4, $5)`,
		subject.ID,
		subject.TeacherID,
		subject.Title,
		subject.Description,
		subject.CreatedAt,
	)
	if err != nil {
		return classify("insert subject", err)
	}
	return nil
}

func (s *PostgresStore) GetSubject(ctx context.Context, id string) (domain.Subject, bool, error) {
	var subject domain.Subject
	err := s.db.QueryRowContext(
		ctx,
		`SELECT id, teacher_id, title, description, created_at FROM subjects WHERE id = $1`,
		id,
	).Scan(&subject.ID, &subject.TeacherID, &subject.Title, &subject.Description, &subject.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subject{}, false, nil
		}
		return domain.Subject{}, false, fmt.Errorf("query subject: %w", err)
	}
	return subject, true, nil
}

func (s *PostgresStore) UpdateSubject(ctx context.Context, subject domain.Subject) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE subjects SET title = $2, description = $3 WHERE id = $1`,
		subject.ID,
		subject.Title,
		subject.Description,
	)
	if err != nil {
		return classify("update subject", err)
	}
	return expectAffected("update subject", res)
}

func (s *PostgresStore) DeleteSubject(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = $1`, id)
	if err != nil {
		return classify("delete subject", err)
	}
	return expectAffected("delete subject", res)
}

func (s *PostgresStore) ListSubjectsByTeacher(ctx context.Context, teacherID string) ([]domain.Subject, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, teacher_id, title, description, created_at
		 FROM subjects WHERE teacher_id = $1
		 ORDER BY created_at DESC`,
		teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("query teacher subjects: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Subject, 0)
	for rows.Next() {
		var subject domain.Subject
		if err := rows.Scan(&subject.ID, &subject.TeacherID, &subject.Title, &subject.Description, &subject.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan subject: %w", err)
		}
		out = append(out, subject)
	}
	return out, rows.Err()
}

const summarySelect = `
SELECT s.id, s.teacher_id, s.title, s.description, s.created_at,
       u.username, u.first_name, u.last_name,
       (SELECT COUNT(*) FROM enrollments e WHERE e.subject_id = s.id) AS enrollment_count
FROM subjects s
JOIN users u ON u.id = s.teacher_id`

func (s *PostgresStore) SearchCatalog(ctx context.Context, query domain.CatalogQuery) ([]domain.SubjectSummary, error) {
	needle := strings.TrimSpace(query.Search)
	order := ` ORDER BY s.created_at DESC`
	if query.Popular {
		order = ` ORDER BY enrollment_count DESC, s.created_at DESC`
	}

	rows, err := s.db.QueryContext(
		ctx,
		summarySelect+`
		 WHERE ($1::text = '' OR s.title ILIKE $2 OR s.description ILIKE $2
		        OR u.username ILIKE $2 OR u.first_name ILIKE $2 OR u.last_name ILIKE $2)
		   AND ($3::text = '' OR NOT EXISTS (
		        SELECT 1 FROM enrollments x WHERE x.subject_id = s.id AND x.student_id = $3))`+order,
		needle,
		likePattern(needle),
		query.AvailableFor,
	)
	if err != nil {
		return nil, fmt.Errorf("query catalog: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (s *PostgresStore) PopularSubjects(ctx context.Context, limit int) ([]domain.SubjectSummary, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(
		ctx,
		summarySelect+` ORDER BY enrollment_count DESC, s.created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query popular subjects: %w", err)
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]domain.SubjectSummary, error) {
	out := make([]domain.SubjectSummary, 0)
	for rows.Next() {
		var (
			summary domain.SubjectSummary
			teacher domain.User
		)
		if err := rows.Scan(
			&summary.ID,
			&summary.TeacherID,
			&summary.Title,
			&summary.Description,
			&summary.CreatedAt,
			&teacher.Username,
			&teacher.FirstName,
			&teacher.LastName,
			&summary.EnrollmentCount,
		); err != nil {
			return nil, fmt.Errorf("scan subject summary: %w", err)
		}
		summary.TeacherUsername = teacher.Username
		summary.TeacherName = teacher.DisplayName()
		out = append(out, summary)
	}
	return out, rows.Err()
}

func likePattern(needle string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + replacer.Replace(needle) + "%"
}

func (s *PostgresStore) CountSubjects(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count subjects: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) Enroll(ctx context.Context, enrollment domain.Enrollment) (domain.Enrollment, bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO enrollments (student_id, subject_id, date_enrolled) VALUES ($1, $2, $3)
		 ON CONFLICT (student_id, subject_id) DO NOTHING`,
		enrollment.StudentID,
		enrollment.SubjectID,
		enrollment.DateEnrolled,
	)
	if err != nil {
		return domain.Enrollment{}, false, classify("insert enrollment", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.Enrollment{}, false, fmt.Errorf("insert enrollment: %w", err)
	}
	if n == 1 {
		return enrollment, true, nil
	}

	existing, ok, err := s.GetEnrollment(ctx, enrollment.StudentID, enrollment.SubjectID)
	if err != nil {
		return domain.Enrollment{}, false, err
	}
	if !ok {
		return domain.Enrollment{}, false, fmt.Errorf("insert enrollment: %w", ErrNotFound)
	}
	return existing, false, nil
}

func (s *PostgresStore) Unenroll(ctx context.Context, studentID, subjectID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin unenroll: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `DELETE FROM enrollments WHERE student_id = $1 AND subject_id = $2`, studentID, subjectID)
	if err != nil {
		return classify("delete enrollment", err)
	}
	if err := expectAffected("delete enrollment", res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM course_progress WHERE student_id = $1 AND subject_id = $2`, studentID, subjectID); err != nil {
		return classify("delete course progress", err)
	}
	return tx.Commit()
}

func (s *PostgresStore) GetEnrollment(ctx context.Context, studentID, subjectID string) (domain.Enrollment, bool, error) {
	var enrollment domain.Enrollment
	err := s.db.QueryRowContext(
		ctx,
		`SELECT student_id, subject_id, date_enrolled FROM enrollments WHERE student_id = $1 AND subject_id = $2`,
		studentID,
		subjectID,
	).Scan(&enrollment.StudentID, &enrollment.SubjectID, &enrollment.DateEnrolled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Enrollment{}, false, nil
		}
		return domain.Enrollment{}, false, fmt.Errorf("query enrollment: %w", err)
	}
	return enrollment, true, nil
}

func (s *PostgresStore) ListEnrollmentsByStudent(ctx context.Context, studentID string) ([]domain.Enrollment, error) {
	return s.listEnrollments(ctx, `student_id = $1`, studentID)
}

func (s *PostgresStore) ListEnrollmentsBySubject(ctx context.Context, subjectID string) ([]domain.Enrollment, error) {
	return s.listEnrollments(ctx, `subject_id = $1`, subjectID)
}

func (s *PostgresStore) listEnrollments(ctx context.Context, where string, arg string) ([]domain.Enrollment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT student_id, subject_id, date_enrolled FROM enrollments WHERE `+where+` ORDER BY date_enrolled DESC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query enrollments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Enrollment, 0)
	for rows.Next() {
		var enrollment domain.Enrollment
		if err := rows.Scan(&enrollment.StudentID, &enrollment.SubjectID, &enrollment.DateEnrolled); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		out = append(out, enrollment)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountEnrollmentsByTeacher(ctx context.Context, teacherID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM enrollments e JOIN subjects s ON s.id = e.subject_id WHERE s.teacher_id = $1`,
		teacherID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count teacher enrollments: %w", err)
	}
	return n, nil
}

const assignmentColumns = `id, subject_id, teacher_id, title, description, due_date, attachment_key, created_at`

func (s *PostgresStore) CreateAssignment(ctx context.Context, a domain.Assignment) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO assignments (`+assignmentColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.SubjectID, a.TeacherID, a.Title, a.Description, a.DueDate, a.AttachmentKey, a.CreatedAt,
	)
	if err != nil {
		return classify("insert assignment", err)
	}
	return nil
}

func (s *PostgresStore) GetAssignment(ctx context.Context, id string) (domain.Assignment, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+assignmentColumns+` FROM assignments WHERE id = $1`, id)
	a, err := scanAssignment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Assignment{}, false, nil
		}
		return domain.Assignment{}, false, fmt.Errorf("query assignment: %w", err)
	}
	return a, true, nil
}

func (s *PostgresStore) ListAssignmentsBySubject(ctx context.Context, subjectID string) ([]domain.Assignment, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+assignmentColumns+` FROM assignments WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Assignment, 0)
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func scanAssignment(row rowScanner) (domain.Assignment, error) {
	var a domain.Assignment
	err := row.Scan(&a.ID, &a.SubjectID, &a.TeacherID, &a.Title, &a.Description, &a.DueDate, &a.AttachmentKey, &a.CreatedAt)
	return a, err
}

const submissionColumns = `id, assignment_id, student_id, submitted_at, file_key, comment, answer, grade, feedback`

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO submissions (`+submissionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sub.ID, sub.AssignmentID, sub.StudentID, sub.SubmittedAt, sub.FileKey, sub.Comment, sub.Answer,
		nullFloat(sub.Grade), sub.Feedback,
	)
	if err != nil {
		return classify("insert submission", err)
	}
	return nil
}

func (s *PostgresStore) GetSubmission(ctx context.Context, id string) (domain.Submission, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+submissionColumns+` FROM submissions WHERE id = $1`, id)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Submission{}, false, nil
		}
		return domain.Submission{}, false, fmt.Errorf("query submission: %w", err)
	}
	return sub, true, nil
}

func (s *PostgresStore) ListSubmissionsByAssignment(ctx context.Context, assignmentID string) ([]domain.Submission, error) {
	return s.listSubmissions(ctx, `assignment_id = $1`, assignmentID)
}

func (s *PostgresStore) ListSubmissionsByStudent(ctx context.Context, studentID string) ([]domain.Submission, error) {
	return s.listSubmissions(ctx, `student_id = $1`, studentID)
}

func (s *PostgresStore) listSubmissions(ctx context.Context, where, arg string) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE `+where+` ORDER BY submitted_at ASC`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Submission, 0)
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *PostgresStore) GradeSubmission(ctx context.Context, id string, grade float64, feedback string) (domain.Submission, error) {
	row := s.db.QueryRowContext(
		ctx,
		`UPDATE submissions SET grade = $2, feedback = $3 WHERE id = $1 RETURNING `+submissionColumns,
		id,
		grade,
		feedback,
	)
	sub, err := scanSubmission(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Submission{}, fmt.Errorf("grade submission: %w", ErrNotFound)
		}
		return domain.Submission{}, classify("grade submission", err)
	}
	return sub, nil
}

func scanSubmission(row rowScanner) (domain.Submission, error) {
	var (
		sub   domain.Submission
		grade sql.NullFloat64
	)
	if err := row.Scan(&sub.ID, &sub.AssignmentID, &sub.StudentID, &sub.SubmittedAt, &sub.FileKey, &sub.Comment, &sub.Answer, &grade, &sub.Feedback); err != nil {
		return domain.Submission{}, err
	}
	if grade.Valid {
		g := grade.Float64
		sub.Grade = &g
	}
	return sub, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

const materialColumns = `id, subject_id, teacher_id, title, description, file_key, video_url, external_link, created_at`

func (s *PostgresStore) CreateMaterial(ctx context.Context, m domain.ClassMaterial) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO class_materials (`+materialColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		m.ID, m.SubjectID, m.TeacherID, m.Title, m.Description, m.FileKey, m.VideoURL, m.ExternalLink, m.CreatedAt,
	)
	if err != nil {
		return classify("insert material", err)
	}
	return nil
}

func (s *PostgresStore) GetMaterial(ctx context.Context, id string) (domain.ClassMaterial, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+materialColumns+` FROM class_materials WHERE id = $1`, id)
	m, err := scanMaterial(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.ClassMaterial{}, false, nil
		}
		return domain.ClassMaterial{}, false, fmt.Errorf("query material: %w", err)
	}
	return m, true, nil
}

func (s *PostgresStore) UpdateMaterial(ctx context.Context, m domain.ClassMaterial) error {
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE class_materials
		 SET subject_id = $2, title = $3, description = $4, file_key = $5, video_url = $6, external_link = $7
		 WHERE id = $1`,
		m.ID, m.SubjectID, m.Title, m.Description, m.FileKey, m.VideoURL, m.ExternalLink,
	)
	if err != nil {
		return classify("update material", err)
	}
	return expectAffected("update material", res)
}

func (s *PostgresStore) DeleteMaterial(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM class_materials WHERE id = $1`, id)
	if err != nil {
		return classify("delete material", err)
	}
	return expectAffected("delete material", res)
}

func (s *PostgresStore) ListMaterialsBySubject(ctx context.Context, subjectID string) ([]domain.ClassMaterial, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+materialColumns+` FROM class_materials WHERE subject_id = $1 ORDER BY created_at DESC`,
		subjectID,
	)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	out := make([]domain.ClassMaterial, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func scanMaterial(row rowScanner) (domain.ClassMaterial, error) {
	var m domain.ClassMaterial
	err := row.Scan(&m.ID, &m.SubjectID, &m.TeacherID, &m.Title, &m.Description, &m.FileKey, &m.VideoURL, &m.ExternalLink, &m.CreatedAt)
	return m, err
}

func (s *PostgresStore) RecordMaterialView(ctx context.Context, view domain.MaterialView) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO material_views (student_id, material_id, subject_id, viewed_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (student_id, material_id) DO NOTHING`,
		view.StudentID,
		view.MaterialID,
		view.SubjectID,
		view.ViewedAt,
	)
	if err != nil {
		return false, classify("insert material view", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert material view: %w", err)
	}
	return n == 1, nil
}

func (s *PostgresStore) CountMaterialViews(ctx context.Context, studentID, subjectID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*) FROM material_views WHERE student_id = $1 AND subject_id = $2`,
		studentID,
		subjectID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count material views: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) SaveProgress(ctx context.Context, p domain.CourseProgress) error {
	var completion sql.NullTime
	if p.CompletionDate != nil {
		completion = sql.NullTime{Time: *p.CompletionDate, Valid: true}
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO course_progress (student_id, subject_id, assignments_completed, total_assignments,
		     materials_viewed, total_materials, is_completed, completion_date, progress_percentage, last_activity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (student_id, subject_id) DO UPDATE SET
		     assignments_completed = EXCLUDED.assignments_completed,
		     total_assignments = EXCLUDED.total_assignments,
		     materials_viewed = EXCLUDED.materials_viewed,
		     total_materials = EXCLUDED.total_materials,
		     is_completed = EXCLUDED.is_completed,
		     completion_date = EXCLUDED.completion_date,
		     progress_percentage = EXCLUDED.progress_percentage,
		     last_activity = EXCLUDED.last_activity`,
		p.StudentID,
		p.SubjectID,
		p.AssignmentsCompleted,
		p.TotalAssignments,
		p.MaterialsViewed,
		p.TotalMaterials,
		p.IsCompleted,
		completion,
		p.Percentage,
		p.LastActivity,
	)
	if err != nil {
		return classify("save course progress", err)
	}
	return nil
}

func (s *PostgresStore) GetProgress(ctx context.Context, studentID, subjectID string) (domain.CourseProgress, bool, error) {
	var (
		p          domain.CourseProgress
		completion sql.NullTime
	)
	err := s.db.QueryRowContext(
		ctx,
		`SELECT student_id, subject_id, assignments_completed, total_assignments, materials_viewed,
		        total_materials, is_completed, completion_date, progress_percentage, last_activity
		 FROM course_progress WHERE student_id = $1 AND subject_id = $2`,
		studentID,
		subjectID,
	).Scan(
		&p.StudentID,
		&p.SubjectID,
		&p.AssignmentsCompleted,
		&p.TotalAssignments,
		&p.MaterialsViewed,
		&p.TotalMaterials,
		&p.IsCompleted,
		&completion,
		&p.Percentage,
		&p.LastActivity,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.CourseProgress{}, false, nil
		}
		return domain.CourseProgress{}, false, fmt.Errorf("query course progress: %w", err)
	}
	if completion.Valid {
		t := completion.Time.UTC()
		p.CompletionDate = &t
	}
	p.LastActivity = p.LastActivity.UTC()
	return p, true, nil
}

var _ Store = (*PostgresStore)(nil)
