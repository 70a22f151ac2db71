package people

import (
	"context"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/somabem/erp/core"
	"github.com/somabem/erp/core/audit"
)

var (
	// errors
	ErrNotFound         = core.NewNotFoundError("person")
	ErrStudentNotFound  = core.NewNotFoundError("student")
	ErrTeacherNotFound  = core.NewNotFoundError("teacher")
	ErrStaffNotFound    = core.NewNotFoundError("staff member")
	ErrGuardianNotFound = core.NewNotFoundError("guardian")
	ErrLinkNotFound     = core.NewNotFoundError("student guardian")
	ErrDocNotFound      = core.NewNotFoundError("student document")

	ErrDocumentExists = errors.New("a person with this document already exists")
	ErrCodeExists     = errors.New("this code is already in use")
	ErrRoleExists     = errors.New("this person already has this role")
	ErrAlreadyLinked  = errors.New("this guardian is already linked to the student")
	ErrDocNumberTaken = errors.New("a document of this kind with this number already exists")
	ErrDocInvalidated = errors.New("the document is already invalidated")
)

type (
	Repository interface {
		DocumentExists(ctx context.Context, docType, docNumber string, exec ...core.DBExecutor) (bool, error)
		CreatePerson(ctx context.Context, p Person, exec ...core.DBExecutor) (Person, error)
		GetPerson(ctx context.Context, id string, exec ...core.DBExecutor) (Person, error)
		// QueryPersons applies AND operation on the QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on the name, document, email or student code.
		QueryPersons(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Person, error)
		UpdatePerson(ctx context.Context, p Person, exec ...core.DBExecutor) (Person, error)
		GetRoles(ctx context.Context, personID string, exec ...core.DBExecutor) (Roles, error)

		StudentCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
		CreateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)
		GetStudent(ctx context.Context, personID string, exec ...core.DBExecutor) (Student, error)
		UpdateStudent(ctx context.Context, s Student, exec ...core.DBExecutor) (Student, error)

		// EmployeeCodeExists looks for the code among teachers and staff.
		EmployeeCodeExists(ctx context.Context, code string, exec ...core.DBExecutor) (bool, error)
		CreateTeacher(ctx context.Context, t Teacher, exec ...core.DBExecutor) (Teacher, error)
		GetTeacher(ctx context.Context, personID string, exec ...core.DBExecutor) (Teacher, error)
		CreateStaff(ctx context.Context, s Staff, exec ...core.DBExecutor) (Staff, error)
		GetStaff(ctx context.Context, personID string, exec ...core.DBExecutor) (Staff, error)
		CreateGuardian(ctx context.Context, g Guardian, exec ...core.DBExecutor) (Guardian, error)
		GetGuardian(ctx context.Context, personID string, exec ...core.DBExecutor) (Guardian, error)

		GetLink(ctx context.Context, studentID, guardianID string, exec ...core.DBExecutor) (StudentGuardian, error)
		CreateLink(ctx context.Context, sg StudentGuardian, exec ...core.DBExecutor) (StudentGuardian, error)
		DeleteLink(ctx context.Context, id string, exec ...core.DBExecutor) error
		// ClearPrimaryGuardian unsets the primary flag of every guardian of the student.
		ClearPrimaryGuardian(ctx context.Context, studentID string, exec ...core.DBExecutor) error
		QueryGuardians(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]GuardianDetail, error)

		DocNumberExists(ctx context.Context, kind, number string, exec ...core.DBExecutor) (bool, error)
		CreateDocument(ctx context.Context, d StudentDocument, exec ...core.DBExecutor) (StudentDocument, error)
		GetDocument(ctx context.Context, id string, exec ...core.DBExecutor) (StudentDocument, error)
		UpdateDocument(ctx context.Context, d StudentDocument, exec ...core.DBExecutor) (StudentDocument, error)
		// QueryDocuments returns the documents of a student, newest first.
		QueryDocuments(ctx context.Context, studentID string, exec ...core.DBExecutor) ([]StudentDocument, error)
	}

	// FileStore keeps the files of issued documents.
	FileStore interface {
		// SaveFile stores r under name. It returns the path, relative to the media dir, and the hex SHA-256 of r.
		SaveFile(ctx context.Context, name string, r io.Reader) (string, string, error)
	}

	Service struct {
		repo     Repository
		tx       core.TxRunner
		validate *validator.Validate
		audit    audit.Recorder
	}
)

func NewService(repo Repository, tx core.TxRunner, validate *validator.Validate, rec audit.Recorder) *Service {
	return &Service{repo: repo, tx: tx, validate: validate, audit: rec}
}

func (svc *Service) newPerson(ctx context.Context, np NewPerson) (Person, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Person{}, err
	}
	if np.DocumentNumber != "" {
		exists, err := svc.repo.DocumentExists(ctx, np.DocumentType, np.DocumentNumber)
		if err != nil {
			return Person{}, errors.Wrap(err, "checking document")
		}
		if exists {
			return Person{}, core.NewValidationError(ErrDocumentExists, core.FieldError{Field: "document_number", Error: ErrDocumentExists.Error()})
		}
	}

	now := core.NowFunc().UTC()
	return Person{
		FullName:         np.FullName,
		BirthDate:        np.BirthDate,
		Gender:           np.Gender,
		MaritalStatus:    np.MaritalStatus,
		Nationality:      np.Nationality,
		DocumentType:     np.DocumentType,
		DocumentNumber:   np.DocumentNumber,
		TaxID:            np.TaxID,
		Email:            np.Email,
		Phone:            np.Phone,
		AltPhone:         np.AltPhone,
		Province:         np.Province,
		Municipality:     np.Municipality,
		Neighbourhood:    np.Neighbourhood,
		Street:           np.Street,
		BloodType:        np.BloodType,
		Allergies:        np.Allergies,
		MedicalNotes:     np.MedicalNotes,
		EmergencyContact: np.EmergencyContact,
		EmergencyPhone:   np.EmergencyPhone,
		IsActive:         true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (svc *Service) Create(ctx context.Context, np NewPerson) (Person, error) {
	p, err := svc.newPerson(ctx, np)
	if err != nil {
		return Person{}, err
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if p, err = svc.repo.CreatePerson(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating person")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, p.ID, nil, p, exec)
	})
	if err != nil {
		return Person{}, err
	}
	return p, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Person, error) {
	return svc.repo.GetPerson(ctx, id)
}

func (svc *Service) Search(ctx context.Context, filter QueryFilter) ([]Person, error) {
	filter.Clean()
	if err := svc.validate.Struct(filter); err != nil {
		return nil, err
	}
	return svc.repo.QueryPersons(ctx, filter)
}

// SetPhoto records the path of the person's photo, relative to the media dir.
func (svc *Service) SetPhoto(ctx context.Context, id, path string) (Person, error) {
	p, err := svc.repo.GetPerson(ctx, id)
	if err != nil {
		return Person{}, err
	}
	p.PhotoPath = path
	p.UpdatedAt = core.NowFunc().UTC()
	p, err = svc.repo.UpdatePerson(ctx, p)
	return p, errors.Wrap(err, "updating person")
}

func (svc *Service) Roles(ctx context.Context, personID string) (Roles, error) {
	if _, err := svc.repo.GetPerson(ctx, personID); err != nil {
		return Roles{}, err
	}
	return svc.repo.GetRoles(ctx, personID)
}

func (svc *Service) checkStudentCode(ctx context.Context, code string, exec ...core.DBExecutor) error {
	exists, err := svc.repo.StudentCodeExists(ctx, code, exec...)
	if err != nil {
		return errors.Wrap(err, "checking student code")
	}
	if exists {
		return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "code", Error: ErrCodeExists.Error()})
	}
	return nil
}

func (svc *Service) checkEmployeeCode(ctx context.Context, code string) error {
	exists, err := svc.repo.EmployeeCodeExists(ctx, code)
	if err != nil {
		return errors.Wrap(err, "checking employee code")
	}
	if exists {
		return core.NewValidationError(ErrCodeExists, core.FieldError{Field: "employee_code", Error: ErrCodeExists.Error()})
	}
	return nil
}

func roleTaken() error {
	return core.NewValidationError(ErrRoleExists, core.FieldError{Field: "person_id", Error: ErrRoleExists.Error()})
}

// AddStudent gives the student role to an existing person.
func (svc *Service) AddStudent(ctx context.Context, personID string, ns NewStudent) (Student, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}
	roles, err := svc.Roles(ctx, personID)
	if err != nil {
		return Student{}, err
	}
	if roles.Student {
		return Student{}, roleTaken()
	}
	if err = svc.checkStudentCode(ctx, ns.Code); err != nil {
		return Student{}, err
	}

	s := Student{
		PersonID:       personID,
		Code:           ns.Code,
		Status:         StudentActive,
		AdmittedOn:     core.DateOf(ns.AdmittedOn),
		PreviousSchool: ns.PreviousSchool,
		SpecialNeeds:   ns.SpecialNeeds,
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.CreateStudent(ctx, s, exec); err != nil {
			return errors.Wrap(err, "creating student")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, personID, nil, s, exec)
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

// RegisterStudent creates the person and its student record together.
func (svc *Service) RegisterStudent(ctx context.Context, np NewPerson, ns NewStudent) (StudentDetail, error) {
	p, err := svc.newPerson(ctx, np)
	if err != nil {
		return StudentDetail{}, err
	}
	if err = ns.Validate(svc.validate); err != nil {
		return StudentDetail{}, err
	}

	var s Student
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		if err := svc.checkStudentCode(ctx, ns.Code, exec); err != nil {
			return err
		}
		var err error
		if p, err = svc.repo.CreatePerson(ctx, p, exec); err != nil {
			return errors.Wrap(err, "creating person")
		}
		s = Student{
			PersonID:       p.ID,
			Code:           ns.Code,
			Status:         StudentActive,
			AdmittedOn:     core.DateOf(ns.AdmittedOn),
			PreviousSchool: ns.PreviousSchool,
			SpecialNeeds:   ns.SpecialNeeds,
		}
		if s, err = svc.repo.CreateStudent(ctx, s, exec); err != nil {
			return errors.Wrap(err, "creating student")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, p.ID, nil, StudentDetail{Person: p, Student: s}, exec)
	})
	if err != nil {
		return StudentDetail{}, err
	}
	return StudentDetail{Person: p, Student: s}, nil
}

func (svc *Service) GetStudent(ctx context.Context, personID string) (StudentDetail, error) {
	p, err := svc.repo.GetPerson(ctx, personID)
	if err != nil {
		return StudentDetail{}, err
	}
	s, err := svc.repo.GetStudent(ctx, personID)
	if err != nil {
		return StudentDetail{}, err
	}
	return StudentDetail{Person: p, Student: s}, nil
}

// SetStudentStatus changes the status of a student (suspension, transfer, graduation...).
func (svc *Service) SetStudentStatus(ctx context.Context, personID, status string) (Student, error) {
	if err := svc.validate.Var(status, "oneof=active inactive suspended transferred expelled graduated"); err != nil {
		return Student{}, core.NewFieldError("status", "invalid status")
	}
	var s Student
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		orig, err := svc.repo.GetStudent(ctx, personID, exec)
		if err != nil {
			return err
		}
		s = orig
		s.Status = status
		if s, err = svc.repo.UpdateStudent(ctx, s, exec); err != nil {
			return errors.Wrap(err, "updating student")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModulePeople, personID, orig, s, exec)
	})
	if err != nil {
		return Student{}, err
	}
	return s, nil
}

func (svc *Service) AddTeacher(ctx context.Context, personID string, nt NewTeacher) (Teacher, error) {
	if err := nt.Validate(svc.validate); err != nil {
		return Teacher{}, err
	}
	roles, err := svc.Roles(ctx, personID)
	if err != nil {
		return Teacher{}, err
	}
	if roles.Teacher {
		return Teacher{}, roleTaken()
	}
	if err = svc.checkEmployeeCode(ctx, nt.EmployeeCode); err != nil {
		return Teacher{}, err
	}

	t := Teacher{
		PersonID:       personID,
		EmployeeCode:   nt.EmployeeCode,
		ContractType:   nt.ContractType,
		HiredOn:        core.DateOf(nt.HiredOn),
		Qualification:  nt.Qualification,
		Specialization: nt.Specialization,
		Status:         StaffActive,
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if t, err = svc.repo.CreateTeacher(ctx, t, exec); err != nil {
			return errors.Wrap(err, "creating teacher")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, personID, nil, t, exec)
	})
	if err != nil {
		return Teacher{}, err
	}
	return t, nil
}

func (svc *Service) GetTeacher(ctx context.Context, personID string) (Teacher, error) {
	return svc.repo.GetTeacher(ctx, personID)
}

func (svc *Service) AddStaff(ctx context.Context, personID string, ns NewStaff) (Staff, error) {
	if err := ns.Validate(svc.validate); err != nil {
		return Staff{}, err
	}
	roles, err := svc.Roles(ctx, personID)
	if err != nil {
		return Staff{}, err
	}
	if roles.Staff {
		return Staff{}, roleTaken()
	}
	if err = svc.checkEmployeeCode(ctx, ns.EmployeeCode); err != nil {
		return Staff{}, err
	}

	s := Staff{
		PersonID:     personID,
		EmployeeCode: ns.EmployeeCode,
		Position:     ns.Position,
		Department:   ns.Department,
		ContractType: ns.ContractType,
		HiredOn:      core.DateOf(ns.HiredOn),
		Status:       StaffActive,
		Salary:       ns.Salary,
	}
	err = svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		var err error
		if s, err = svc.repo.CreateStaff(ctx, s, exec); err != nil {
			return errors.Wrap(err, "creating staff")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, personID, nil, s, exec)
	})
	if err != nil {
		return Staff{}, err
	}
	return s, nil
}

func (svc *Service) GetStaff(ctx context.Context, personID string) (Staff, error) {
	return svc.repo.GetStaff(ctx, personID)
}

func (svc *Service) AddGuardian(ctx context.Context, personID string, ng NewGuardian) (Guardian, error) {
	roles, err := svc.Roles(ctx, personID)
	if err != nil {
		return Guardian{}, err
	}
	if roles.Guardian {
		return Guardian{}, roleTaken()
	}
	g := Guardian{
		PersonID:   personID,
		Occupation: core.CleanString(ng.Occupation),
		Workplace:  core.CleanString(ng.Workplace),
	}
	g, err = svc.repo.CreateGuardian(ctx, g)
	return g, errors.Wrap(err, "creating guardian")
}

// LinkGuardian links a guardian to a student. Making it primary demotes the current primary guardian.
func (svc *Service) LinkGuardian(ctx context.Context, studentID string, nsg NewStudentGuardian) (StudentGuardian, error) {
	if err := svc.validate.Struct(nsg); err != nil {
		return StudentGuardian{}, err
	}
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return StudentGuardian{}, err
	}
	if _, err := svc.repo.GetGuardian(ctx, nsg.GuardianID); err != nil {
		return StudentGuardian{}, err
	}

	sg := StudentGuardian{
		StudentID:              studentID,
		GuardianID:             nsg.GuardianID,
		Relationship:           nsg.Relationship,
		IsPrimary:              nsg.IsPrimary,
		FinanciallyResponsible: nsg.FinanciallyResponsible,
	}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		_, err := svc.repo.GetLink(ctx, studentID, nsg.GuardianID, exec)
		switch {
		case err == nil:
			return core.NewValidationError(ErrAlreadyLinked, core.FieldError{Field: "guardian_id", Error: ErrAlreadyLinked.Error()})
		case errors.Cause(err) != ErrLinkNotFound:
			return errors.Wrap(err, "getting student guardian")
		}
		if sg.IsPrimary {
			if err = svc.repo.ClearPrimaryGuardian(ctx, studentID, exec); err != nil {
				return errors.Wrap(err, "clearing primary guardian")
			}
		}
		if sg, err = svc.repo.CreateLink(ctx, sg, exec); err != nil {
			return errors.Wrap(err, "linking guardian")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, studentID, nil, sg, exec)
	})
	if err != nil {
		return StudentGuardian{}, err
	}
	return sg, nil
}

func (svc *Service) UnlinkGuardian(ctx context.Context, studentID, guardianID string) error {
	return svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		sg, err := svc.repo.GetLink(ctx, studentID, guardianID, exec)
		if err != nil {
			return err
		}
		if err = svc.repo.DeleteLink(ctx, sg.ID, exec); err != nil {
			return errors.Wrap(err, "unlinking guardian")
		}
		return svc.audit.Record(ctx, audit.ActionDelete, core.ModulePeople, studentID, sg, nil, exec)
	})
}

func (svc *Service) Guardians(ctx context.Context, studentID string) ([]GuardianDetail, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGuardians(ctx, studentID)
}

// Student documents

// IssueDocument records a document issued to a student by the acting user.
func (svc *Service) IssueDocument(ctx context.Context, studentID string, nd NewStudentDocument) (StudentDocument, error) {
	if err := nd.Validate(svc.validate); err != nil {
		return StudentDocument{}, err
	}
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return StudentDocument{}, err
	}

	d := StudentDocument{
		StudentID:    studentID,
		Kind:         nd.Kind,
		Number:       nd.Number,
		Description:  nd.Description,
		IssuedOn:     nd.IssuedOn,
		ValidUntil:   nd.ValidUntil,
		AuthorizedBy: nd.AuthorizedBy,
		IsValid:      true,
		Notes:        nd.Notes,
		CreatedAt:    core.NowFunc().UTC(),
	}
	if actor := core.ActorFrom(ctx); actor.UserID != "" {
		d.IssuedBy = core.StringPtr(actor.UserID)
	}
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		taken, err := svc.repo.DocNumberExists(ctx, d.Kind, d.Number, exec)
		if err != nil {
			return errors.Wrap(err, "checking document number")
		}
		if taken {
			return core.NewValidationError(ErrDocNumberTaken, core.FieldError{Field: "number", Error: ErrDocNumberTaken.Error()})
		}
		if d, err = svc.repo.CreateDocument(ctx, d, exec); err != nil {
			return errors.Wrap(err, "creating student document")
		}
		return svc.audit.Record(ctx, audit.ActionCreate, core.ModulePeople, d.ID, nil, d, exec)
	})
	if err != nil {
		return StudentDocument{}, err
	}
	return d, nil
}

// AttachDocumentFile records the stored file of a document and its hex SHA-256 digest.
func (svc *Service) AttachDocumentFile(ctx context.Context, id, path, digest string) (StudentDocument, error) {
	if err := svc.validate.Var(digest, "len=64,hexadecimal"); err != nil {
		return StudentDocument{}, core.NewFieldError("file_hash", "invalid SHA-256 digest")
	}
	var d StudentDocument
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		before, err := svc.repo.GetDocument(ctx, id, exec)
		if err != nil {
			return err
		}
		d = before
		d.FilePath, d.FileHash = path, digest
		if d, err = svc.repo.UpdateDocument(ctx, d, exec); err != nil {
			return errors.Wrap(err, "updating student document")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModulePeople, d.ID, before, d, exec)
	})
	if err != nil {
		return StudentDocument{}, err
	}
	return d, nil
}

// InvalidateDocument revokes a document; the reason is mandatory.
func (svc *Service) InvalidateDocument(ctx context.Context, id, reason string) (StudentDocument, error) {
	reason = core.CleanString(reason)
	if reason == "" {
		return StudentDocument{}, core.NewFieldError("reason", "a reason is required")
	}
	var d StudentDocument
	err := svc.tx.InTx(ctx, func(exec core.DBExecutor) error {
		before, err := svc.repo.GetDocument(ctx, id, exec)
		if err != nil {
			return err
		}
		if !before.IsValid {
			return core.NewValidationError(ErrDocInvalidated, core.FieldError{Field: "is_valid", Error: ErrDocInvalidated.Error()})
		}
		d = before
		d.IsValid = false
		d.InvalidationReason = reason
		if d, err = svc.repo.UpdateDocument(ctx, d, exec); err != nil {
			return errors.Wrap(err, "updating student document")
		}
		return svc.audit.Record(ctx, audit.ActionUpdate, core.ModulePeople, d.ID, before, d, exec)
	})
	if err != nil {
		return StudentDocument{}, err
	}
	return d, nil
}

func (svc *Service) GetDocument(ctx context.Context, id string) (StudentDocument, error) {
	return svc.repo.GetDocument(ctx, id)
}

func (svc *Service) Documents(ctx context.Context, studentID string) ([]StudentDocument, error) {
	if _, err := svc.repo.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	return svc.repo.QueryDocuments(ctx, studentID)
}
