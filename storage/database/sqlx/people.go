package sqlxrepos

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/people"
)

var (
	personColumns = columns{
		"id", "full_name", "birth_date", "gender", "marital_status", "nationality", "document_type",
		"document_number", "tax_id", "email", "phone", "alt_phone", "province", "municipality", "neighbourhood",
		"street", "blood_type", "allergies", "medical_notes", "emergency_contact", "emergency_phone",
		"photo_path", "is_active", "created_at", "updated_at",
	}
	studentColumns = columns{"person_id", "code", "status", "admitted_on", "previous_school", "special_needs"}
	teacherColumns = columns{
		"person_id", "employee_code", "contract_type", "hired_on", "qualification", "specialization", "status",
	}
	staffColumns = columns{
		"person_id", "employee_code", "position", "department", "contract_type", "hired_on", "status", "salary",
	}
	guardianColumns = columns{"person_id", "occupation", "workplace"}
	linkColumns     = columns{
		"id", "student_id", "guardian_id", "relationship", "is_primary", "financially_responsible",
	}
	documentColumns = columns{
		"id", "student_id", "kind", "number", "description", "issued_on", "valid_until", "file_path", "file_hash",
		"issued_by", "authorized_by", "is_valid", "invalidation_reason", "notes", "created_at",
	}
)

type peopleRepository struct {
	repository
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *sqlx.DB) *peopleRepository {
	return &peopleRepository{repository{db: db}}
}

func (repo peopleRepository) DocumentExists(ctx context.Context, docType, docNumber string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM persons WHERE document_type = $1 AND document_number = $2", docType, docNumber)
	return ok, errors.Wrap(err, "checking document")
}

func (repo peopleRepository) CreatePerson(ctx context.Context, p people.Person, exec ...core.DBExecutor) (people.Person, error) {
	p.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), personColumns.insert("persons"), p); err != nil {
		return people.Person{}, trapUniqueErr(err, "inserting person")
	}
	return p, nil
}

func (repo peopleRepository) GetPerson(ctx context.Context, id string, exec ...core.DBExecutor) (people.Person, error) {
	if !validID(id) {
		return people.Person{}, people.ErrNotFound
	}
	var p people.Person
	err := sqlx.GetContext(ctx, repo.getExec(exec), &p, personColumns.selectFrom("persons")+" WHERE id = $1", id)
	if err != nil {
		return people.Person{}, trapNoRowsErr(err, people.ErrNotFound, "getting person")
	}
	return p, nil
}

func (repo peopleRepository) QueryPersons(ctx context.Context, filter people.QueryFilter, exec ...core.DBExecutor) ([]people.Person, error) {
	var w where
	if filter.Search != "" {
		val := "%" + filter.Search + "%"
		w.add("(p.full_name ILIKE ? OR p.document_number ILIKE ? OR p.email ILIKE ? OR "+
			"EXISTS (SELECT 1 FROM students s WHERE s.person_id = p.id AND s.code ILIKE ?))", val, val, val, val)
	}
	switch filter.Role {
	case "student":
		w.add("EXISTS (SELECT 1 FROM students r WHERE r.person_id = p.id)")
	case "teacher":
		w.add("EXISTS (SELECT 1 FROM teachers r WHERE r.person_id = p.id)")
	case "staff":
		w.add("EXISTS (SELECT 1 FROM staff r WHERE r.person_id = p.id)")
	case "guardian":
		w.add("EXISTS (SELECT 1 FROM guardians r WHERE r.person_id = p.id)")
	}
	if filter.IsActive != nil {
		w.add("p.is_active = ?", *filter.IsActive)
	}

	persons := make([]people.Person, 0)
	q := fmt.Sprintf("SELECT %s FROM persons p%s ORDER BY p.full_name", prefixed("p", personColumns), w.String())
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &persons, q, w.args...)
	return persons, errors.Wrap(err, "querying persons")
}

func (repo peopleRepository) UpdatePerson(ctx context.Context, p people.Person, exec ...core.DBExecutor) (people.Person, error) {
	if err := namedExec(ctx, repo.getExec(exec), personColumns.update("persons"), p); err != nil {
		return people.Person{}, trapNoRowsErr(err, people.ErrNotFound, "updating person")
	}
	return p, nil
}

func (repo peopleRepository) GetRoles(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Roles, error) {
	var roles people.Roles
	if !validID(personID) {
		return roles, nil
	}
	err := sqlx.GetContext(ctx, repo.getExec(exec), &roles, `
		SELECT
			EXISTS (SELECT 1 FROM students WHERE person_id = $1) AS student,
			EXISTS (SELECT 1 FROM teachers WHERE person_id = $1) AS teacher,
			EXISTS (SELECT 1 FROM staff WHERE person_id = $1) AS staff,
			EXISTS (SELECT 1 FROM guardians WHERE person_id = $1) AS guardian`, personID)
	return roles, errors.Wrap(err, "getting person roles")
}

func (repo peopleRepository) StudentCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM students WHERE code = $1", code)
	return ok, errors.Wrap(err, "checking student code")
}

func (repo peopleRepository) CreateStudent(ctx context.Context, s people.Student, exec ...core.DBExecutor) (people.Student, error) {
	if err := namedExec(ctx, repo.getExec(exec), studentColumns.insert("students"), s); err != nil {
		return people.Student{}, trapUniqueErr(err, "inserting student")
	}
	return s, nil
}

func (repo peopleRepository) GetStudent(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Student, error) {
	return getStudent(ctx, repo.getExec(exec), personID)
}

func getStudent(ctx context.Context, exec sqlx.ExtContext, personID string) (people.Student, error) {
	if !validID(personID) {
		return people.Student{}, people.ErrStudentNotFound
	}
	var s people.Student
	err := sqlx.GetContext(ctx, exec, &s, studentColumns.selectFrom("students")+" WHERE person_id = $1", personID)
	if err != nil {
		return people.Student{}, trapNoRowsErr(err, people.ErrStudentNotFound, "getting student")
	}
	return s, nil
}

func (repo peopleRepository) UpdateStudent(ctx context.Context, s people.Student, exec ...core.DBExecutor) (people.Student, error) {
	if err := namedExec(ctx, repo.getExec(exec), studentColumns.update("students"), s); err != nil {
		return people.Student{}, trapNoRowsErr(err, people.ErrStudentNotFound, "updating student")
	}
	return s, nil
}

func (repo peopleRepository) EmployeeCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec),
		"SELECT 1 FROM teachers WHERE employee_code = $1 UNION ALL SELECT 1 FROM staff WHERE employee_code = $1", code)
	return ok, errors.Wrap(err, "checking employee code")
}

func (repo peopleRepository) CreateTeacher(ctx context.Context, t people.Teacher, exec ...core.DBExecutor) (people.Teacher, error) {
	if err := namedExec(ctx, repo.getExec(exec), teacherColumns.insert("teachers"), t); err != nil {
		return people.Teacher{}, trapUniqueErr(err, "inserting teacher")
	}
	return t, nil
}

func (repo peopleRepository) GetTeacher(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Teacher, error) {
	if !validID(personID) {
		return people.Teacher{}, people.ErrTeacherNotFound
	}
	var t people.Teacher
	err := sqlx.GetContext(ctx, repo.getExec(exec), &t, teacherColumns.selectFrom("teachers")+" WHERE person_id = $1", personID)
	if err != nil {
		return people.Teacher{}, trapNoRowsErr(err, people.ErrTeacherNotFound, "getting teacher")
	}
	return t, nil
}

func (repo peopleRepository) CreateStaff(ctx context.Context, s people.Staff, exec ...core.DBExecutor) (people.Staff, error) {
	if err := namedExec(ctx, repo.getExec(exec), staffColumns.insert("staff"), s); err != nil {
		return people.Staff{}, trapUniqueErr(err, "inserting staff")
	}
	return s, nil
}

func (repo peopleRepository) GetStaff(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Staff, error) {
	if !validID(personID) {
		return people.Staff{}, people.ErrStaffNotFound
	}
	var s people.Staff
	err := sqlx.GetContext(ctx, repo.getExec(exec), &s, staffColumns.selectFrom("staff")+" WHERE person_id = $1", personID)
	if err != nil {
		return people.Staff{}, trapNoRowsErr(err, people.ErrStaffNotFound, "getting staff")
	}
	return s, nil
}

func (repo peopleRepository) CreateGuardian(ctx context.Context, g people.Guardian, exec ...core.DBExecutor) (people.Guardian, error) {
	if err := namedExec(ctx, repo.getExec(exec), guardianColumns.insert("guardians"), g); err != nil {
		return people.Guardian{}, trapUniqueErr(err, "inserting guardian")
	}
	return g, nil
}

func (repo peopleRepository) GetGuardian(ctx context.Context, personID string, exec ...core.DBExecutor) (people.Guardian, error) {
	if !validID(personID) {
		return people.Guardian{}, people.ErrGuardianNotFound
	}
	var g people.Guardian
	err := sqlx.GetContext(ctx, repo.getExec(exec), &g, guardianColumns.selectFrom("guardians")+" WHERE person_id = $1", personID)
	if err != nil {
		return people.Guardian{}, trapNoRowsErr(err, people.ErrGuardianNotFound, "getting guardian")
	}
	return g, nil
}

func (repo peopleRepository) GetLink(ctx context.Context, studentID, guardianID string, exec ...core.DBExecutor) (people.StudentGuardian, error) {
	if !validID(studentID) || !validID(guardianID) {
		return people.StudentGuardian{}, people.ErrLinkNotFound
	}
	var sg people.StudentGuardian
	err := sqlx.GetContext(ctx, repo.getExec(exec), &sg,
		linkColumns.selectFrom("student_guardians")+" WHERE student_id = $1 AND guardian_id = $2", studentID, guardianID)
	if err != nil {
		return people.StudentGuardian{}, trapNoRowsErr(err, people.ErrLinkNotFound, "getting student guardian")
	}
	return sg, nil
}

func (repo peopleRepository) CreateLink(ctx context.Context, sg people.StudentGuardian, exec ...core.DBExecutor) (people.StudentGuardian, error) {
	sg.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), linkColumns.insert("student_guardians"), sg); err != nil {
		return people.StudentGuardian{}, trapUniqueErr(err, "inserting student guardian")
	}
	return sg, nil
}

func (repo peopleRepository) DeleteLink(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if !validID(id) {
		return people.ErrLinkNotFound
	}
	res, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM student_guardians WHERE id = $1", id)
	if err != nil {
		return errors.Wrap(err, "deleting student guardian")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return people.ErrLinkNotFound
	}
	return nil
}

func (repo peopleRepository) ClearPrimaryGuardian(ctx context.Context, studentID string, exec ...core.DBExecutor) error {
	_, err := repo.getExec(exec).ExecContext(ctx,
		"UPDATE student_guardians SET is_primary = FALSE WHERE student_id = $1 AND is_primary", studentID)
	return errors.Wrap(err, "clearing primary guardian")
}

func (repo peopleRepository) QueryGuardians(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]people.GuardianDetail, error) {
	guardians := make([]people.GuardianDetail, 0)
	if !validID(studentID) {
		return guardians, nil
	}
	links := make([]string, len(linkColumns))
	for i, c := range linkColumns {
		links[i] = fmt.Sprintf(`sg.%s AS "link.%s"`, c, c)
	}
	q := fmt.Sprintf(`SELECT %s, %s FROM student_guardians sg JOIN persons p ON p.id = sg.guardian_id
		WHERE sg.student_id = $1 ORDER BY sg.is_primary DESC, p.full_name`,
		prefixed("p", personColumns), strings.Join(links, ", "))
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &guardians, q, studentID)
	return guardians, errors.Wrap(err, "querying guardians")
}

func (repo peopleRepository) DocNumberExists(ctx context.Context, kind, number string, exec ...core.DBExecutor) (bool, error) {
	ok, err := exists(ctx, repo.getExec(exec), "SELECT 1 FROM student_documents WHERE kind = $1 AND number = $2", kind, number)
	return ok, errors.Wrap(err, "checking document number")
}

func (repo peopleRepository) CreateDocument(ctx context.Context, d people.StudentDocument, exec ...core.DBExecutor) (people.StudentDocument, error) {
	d.ID = uuid.NewString()
	if err := namedExec(ctx, repo.getExec(exec), documentColumns.insert("student_documents"), d); err != nil {
		return people.StudentDocument{}, trapUniqueErr(err, "inserting student document")
	}
	return d, nil
}

func (repo peopleRepository) GetDocument(ctx context.Context, id string, exec ...core.DBExecutor) (people.StudentDocument, error) {
	var d people.StudentDocument
	if !validID(id) {
		return d, people.ErrDocNotFound
	}
	err := sqlx.GetContext(ctx, repo.getExec(exec), &d, documentColumns.selectFrom("student_documents")+" WHERE id = $1", id)
	return d, trapNoRowsErr(err, people.ErrDocNotFound, "querying student document")
}

func (repo peopleRepository) UpdateDocument(ctx context.Context, d people.StudentDocument, exec ...core.DBExecutor) (people.StudentDocument, error) {
	if err := namedExec(ctx, repo.getExec(exec), documentColumns.update("student_documents"), d); err != nil {
		return people.StudentDocument{}, trapNoRowsErr(err, people.ErrDocNotFound, "updating student document")
	}
	return d, nil
}

func (repo peopleRepository) QueryDocuments(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]people.StudentDocument, error) {
	docs := make([]people.StudentDocument, 0)
	if !validID(studentID) {
		return docs, nil
	}
	err := sqlx.SelectContext(ctx, repo.getExec(exec), &docs,
		documentColumns.selectFrom("student_documents")+" WHERE student_id = $1 ORDER BY issued_on DESC, created_at DESC", studentID)
	return docs, errors.Wrap(err, "querying student documents")
}

// prefixed qualifies the columns with a table alias.
func prefixed(alias string, cols columns) string {
	qualified := make([]string, len(cols))
	for i, c := range cols {
		qualified[i] = alias + "." + c
	}
	return strings.Join(qualified, ", ")
}
