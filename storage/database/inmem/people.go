package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/people"
)

type peopleRepository struct {
	db *DB
}

var _ people.Repository = (*peopleRepository)(nil) // interface compliance check

func NewPeopleRepository(db *DB) *peopleRepository {
	return &peopleRepository{db: db}
}

func contains(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (repo *peopleRepository) DocumentExists(_ context.Context, docType, docNumber string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.persons.exists(func(p people.Person) bool {
		return p.DocumentType == docType && p.DocumentNumber == docNumber
	}), nil
}

func (repo *peopleRepository) CreatePerson(_ context.Context, p people.Person, _ ...core.DBExecutor) (people.Person, error) {
	if p.DocumentNumber != "" && repo.db.persons.exists(func(o people.Person) bool {
		return o.DocumentType == p.DocumentType && o.DocumentNumber == p.DocumentNumber
	}) {
		return people.Person{}, core.NewUniqueViolation("document")
	}
	p.ID = uuid.NewString()
	repo.db.persons.insert(p.ID, p)
	return p, nil
}

func (repo *peopleRepository) GetPerson(_ context.Context, id string, _ ...core.DBExecutor) (people.Person, error) {
	if p, ok := repo.db.persons.get(id); ok {
		return p, nil
	}
	return people.Person{}, people.ErrNotFound
}

func (repo *peopleRepository) QueryPersons(_ context.Context, filter people.QueryFilter, _ ...core.DBExecutor) ([]people.Person, error) {
	persons := repo.db.persons.filter(func(p people.Person) bool {
		if filter.IsActive != nil && p.IsActive != *filter.IsActive {
			return false
		}
		if filter.Role != "" {
			var hasRole bool
			switch filter.Role {
			case "student":
				_, hasRole = repo.db.students.get(p.ID)
			case "teacher":
				_, hasRole = repo.db.teachers.get(p.ID)
			case "staff":
				_, hasRole = repo.db.staff.get(p.ID)
			case "guardian":
				_, hasRole = repo.db.guardians.get(p.ID)
			}
			if !hasRole {
				return false
			}
		}
		if filter.Search == "" {
			return true
		}
		if contains(p.FullName, filter.Search) || contains(p.DocumentNumber, filter.Search) || contains(p.Email, filter.Search) {
			return true
		}
		s, ok := repo.db.students.get(p.ID)
		return ok && contains(s.Code, filter.Search)
	})
	return sortBy(persons, func(a, b people.Person) bool { return a.FullName < b.FullName }), nil
}

func (repo *peopleRepository) UpdatePerson(_ context.Context, p people.Person, _ ...core.DBExecutor) (people.Person, error) {
	if !repo.db.persons.update(p.ID, p) {
		return people.Person{}, people.ErrNotFound
	}
	return p, nil
}

func (repo *peopleRepository) GetRoles(_ context.Context, personID string, _ ...core.DBExecutor) (people.Roles, error) {
	var roles people.Roles
	_, roles.Student = repo.db.students.get(personID)
	_, roles.Teacher = repo.db.teachers.get(personID)
	_, roles.Staff = repo.db.staff.get(personID)
	_, roles.Guardian = repo.db.guardians.get(personID)
	return roles, nil
}

func (repo *peopleRepository) StudentCodeExists(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.students.exists(func(s people.Student) bool { return s.Code == code }), nil
}

func (repo *peopleRepository) CreateStudent(ctx context.Context, s people.Student, _ ...core.DBExecutor) (people.Student, error) {
	if ok, _ := repo.StudentCodeExists(ctx, s.Code); ok {
		return people.Student{}, core.NewUniqueViolation("code")
	}
	repo.db.students.insert(s.PersonID, s)
	return s, nil
}

func (repo *peopleRepository) GetStudent(_ context.Context, personID string, _ ...core.DBExecutor) (people.Student, error) {
	return repo.db.getStudent(personID)
}

func (db *DB) getStudent(personID string) (people.Student, error) {
	if s, ok := db.students.get(personID); ok {
		return s, nil
	}
	return people.Student{}, people.ErrStudentNotFound
}

func (repo *peopleRepository) UpdateStudent(_ context.Context, s people.Student, _ ...core.DBExecutor) (people.Student, error) {
	if !repo.db.students.update(s.PersonID, s) {
		return people.Student{}, people.ErrStudentNotFound
	}
	return s, nil
}

func (repo *peopleRepository) EmployeeCodeExists(_ context.Context, code string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.teachers.exists(func(t people.Teacher) bool { return t.EmployeeCode == code }) ||
		repo.db.staff.exists(func(s people.Staff) bool { return s.EmployeeCode == code }), nil
}

func (repo *peopleRepository) CreateTeacher(_ context.Context, t people.Teacher, _ ...core.DBExecutor) (people.Teacher, error) {
	repo.db.teachers.insert(t.PersonID, t)
	return t, nil
}

func (repo *peopleRepository) GetTeacher(_ context.Context, personID string, _ ...core.DBExecutor) (people.Teacher, error) {
	if t, ok := repo.db.teachers.get(personID); ok {
		return t, nil
	}
	return people.Teacher{}, people.ErrTeacherNotFound
}

func (repo *peopleRepository) CreateStaff(_ context.Context, s people.Staff, _ ...core.DBExecutor) (people.Staff, error) {
	repo.db.staff.insert(s.PersonID, s)
	return s, nil
}

func (repo *peopleRepository) GetStaff(_ context.Context, personID string, _ ...core.DBExecutor) (people.Staff, error) {
	if s, ok := repo.db.staff.get(personID); ok {
		return s, nil
	}
	return people.Staff{}, people.ErrStaffNotFound
}

func (repo *peopleRepository) CreateGuardian(_ context.Context, g people.Guardian, _ ...core.DBExecutor) (people.Guardian, error) {
	repo.db.guardians.insert(g.PersonID, g)
	return g, nil
}

func (repo *peopleRepository) GetGuardian(_ context.Context, personID string, _ ...core.DBExecutor) (people.Guardian, error) {
	if g, ok := repo.db.guardians.get(personID); ok {
		return g, nil
	}
	return people.Guardian{}, people.ErrGuardianNotFound
}

func (repo *peopleRepository) GetLink(_ context.Context, studentID, guardianID string, _ ...core.DBExecutor) (people.StudentGuardian, error) {
	sg, ok := repo.db.links.find(func(sg people.StudentGuardian) bool {
		return sg.StudentID == studentID && sg.GuardianID == guardianID
	})
	if !ok {
		return people.StudentGuardian{}, people.ErrLinkNotFound
	}
	return sg, nil
}

func (repo *peopleRepository) CreateLink(_ context.Context, sg people.StudentGuardian, _ ...core.DBExecutor) (people.StudentGuardian, error) {
	if sg.IsPrimary && repo.db.links.exists(func(o people.StudentGuardian) bool { return o.StudentID == sg.StudentID && o.IsPrimary }) {
		return people.StudentGuardian{}, core.NewUniqueViolation("is_primary")
	}
	sg.ID = uuid.NewString()
	repo.db.links.insert(sg.ID, sg)
	return sg, nil
}

func (repo *peopleRepository) DeleteLink(_ context.Context, id string, _ ...core.DBExecutor) error {
	if _, ok := repo.db.links.get(id); !ok {
		return people.ErrLinkNotFound
	}
	repo.db.links.delete(id)
	return nil
}

func (repo *peopleRepository) ClearPrimaryGuardian(_ context.Context, studentID string, _ ...core.DBExecutor) error {
	for _, sg := range repo.db.links.filter(func(sg people.StudentGuardian) bool { return sg.StudentID == studentID && sg.IsPrimary }) {
		sg.IsPrimary = false
		repo.db.links.update(sg.ID, sg)
	}
	return nil
}

func (repo *peopleRepository) QueryGuardians(_ context.Context, studentID string, _ ...core.DBExecutor) ([]people.GuardianDetail, error) {
	guardians := make([]people.GuardianDetail, 0)
	for _, sg := range repo.db.links.filter(func(sg people.StudentGuardian) bool { return sg.StudentID == studentID }) {
		if p, ok := repo.db.persons.get(sg.GuardianID); ok {
			guardians = append(guardians, people.GuardianDetail{Person: p, Link: sg})
		}
	}
	return sortBy(guardians, func(a, b people.GuardianDetail) bool {
		if a.Link.IsPrimary != b.Link.IsPrimary {
			return a.Link.IsPrimary
		}
		return a.FullName < b.FullName
	}), nil
}

func (repo *peopleRepository) DocNumberExists(_ context.Context, kind, number string, _ ...core.DBExecutor) (bool, error) {
	return repo.db.documents.exists(func(d people.StudentDocument) bool {
		return d.Kind == kind && d.Number == number
	}), nil
}

func (repo *peopleRepository) CreateDocument(_ context.Context, d people.StudentDocument, _ ...core.DBExecutor) (people.StudentDocument, error) {
	if repo.db.documents.exists(func(o people.StudentDocument) bool { return o.Kind == d.Kind && o.Number == d.Number }) {
		return people.StudentDocument{}, core.NewUniqueViolation("number")
	}
	d.ID = uuid.NewString()
	repo.db.documents.insert(d.ID, d)
	return d, nil
}

func (repo *peopleRepository) GetDocument(_ context.Context, id string, _ ...core.DBExecutor) (people.StudentDocument, error) {
	if d, ok := repo.db.documents.get(id); ok {
		return d, nil
	}
	return people.StudentDocument{}, people.ErrDocNotFound
}

func (repo *peopleRepository) UpdateDocument(_ context.Context, d people.StudentDocument, _ ...core.DBExecutor) (people.StudentDocument, error) {
	if !repo.db.documents.update(d.ID, d) {
		return people.StudentDocument{}, people.ErrDocNotFound
	}
	return d, nil
}

func (repo *peopleRepository) QueryDocuments(_ context.Context, studentID string, _ ...core.DBExecutor) ([]people.StudentDocument, error) {
	docs := repo.db.documents.filter(func(d people.StudentDocument) bool { return d.StudentID == studentID })
	return sortBy(docs, func(a, b people.StudentDocument) bool {
		if !a.IssuedOn.Equal(b.IssuedOn) {
			return a.IssuedOn.After(b.IssuedOn)
		}
		return a.CreatedAt.After(b.CreatedAt)
	}), nil
}
