package service

import (
	"context"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/common"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemberQuery is the filter and search surface of GET /members.
var MemberQuery = utils.QueryConfig{
	Filterable: []string{"role", "isActive"},
	Searchable: []string{"name", "email", "studentId"},
}

const invalidCredentials = "Invalid email or password"

// bcrypt rejects passwords longer than this many bytes.
const maxPasswordBytes = 72

// MemberStore is the persistence the member service needs. Reads other than
// MemberByEmail must not return the password hash.
type MemberStore interface {
	FindMembers(ctx context.Context, filter bson.M, page utils.Page) ([]models.Member, int64, error)
	MemberByID(ctx context.Context, id primitive.ObjectID) (*models.Member, error)
	MemberByEmail(ctx context.Context, email string) (*models.Member, error)
	InsertMember(ctx context.Context, m *models.Member) (primitive.ObjectID, error)
	UpdateMember(ctx context.Context, filter, update bson.M) (*models.Member, error)
	DeleteMember(ctx context.Context, id primitive.ObjectID) (bool, error)
	MemberStatsByRole(ctx context.Context) ([]models.RoleStat, error)
}

// ActiveLoanCounter reports unreturned loans referencing a member or book.
type ActiveLoanCounter interface {
	CountActiveLoans(ctx context.Context, field string, id primitive.ObjectID) (int64, error)
}

type MemberService struct {
	store  MemberStore
	loans  ActiveLoanCounter
	hasher PasswordHasher
	now    func() time.Time
}

func NewMemberService(store MemberStore, loans ActiveLoanCounter, hasher PasswordHasher) *MemberService {
	return &MemberService{store: store, loans: loans, hasher: hasher, now: time.Now}
}

type CreateMemberInput struct {
	Name       string `json:"name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"omitempty,oneof=student patron admin"`
	StudentID  string `json:"studentId"`
	Department string `json:"department"`
	Phone      string `json:"phone"`
	Address    string `json:"address"`
	IsActive   *bool  `json:"isActive"`
}

// UpdateMemberInput holds a partial update; nil fields are left unchanged
// and empty optional strings clear the field.
type UpdateMemberInput struct {
	Name       *string `json:"name"`
	Email      *string `json:"email"`
	Password   *string `json:"password"`
	Role       *string `json:"role"`
	StudentID  *string `json:"studentId"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
	IsActive   *bool   `json:"isActive"`
}

func (s *MemberService) List(ctx context.Context, params url.Values) (utils.Paginated[models.Member], error) {
	page := utils.ResolvePage(params.Get("page"), params.Get("limit"))
	members, total, err := s.store.FindMembers(ctx, MemberQuery.Query(params), page)
	if err != nil {
		return utils.Paginated[models.Member]{}, common.FromStore(err, "member")
	}
	return utils.Paginate(members, total, page), nil
}

func (s *MemberService) Get(ctx context.Context, idHex string) (*models.Member, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	m, err := s.store.MemberByID(ctx, id)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	if m == nil {
		return nil, common.NotFound("member")
	}
	return m, nil
}

// RegisterStudent creates a student; a student ID is required.
func (s *MemberService) RegisterStudent(ctx context.Context, in CreateMemberInput) (*models.Member, error) {
	in.Role = models.RoleStudent
	if strings.TrimSpace(in.StudentID) == "" {
		return nil, common.Validation("studentId", "studentId is required")
	}
	return s.Create(ctx, in)
}

func (s *MemberService) RegisterPatron(ctx context.Context, in CreateMemberInput) (*models.Member, error) {
	in.Role = models.RolePatron
	return s.Create(ctx, in)
}

// Create registers a member with the role given in the input (student when
// empty).
func (s *MemberService) Create(ctx context.Context, in CreateMemberInput) (*models.Member, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Role = strings.TrimSpace(strings.ToLower(in.Role))
	if in.Role == "" {
		in.Role = models.RoleStudent
	}
	if err := validateStruct(in); err != nil {
		return nil, err
	}
	existing, err := s.store.MemberByEmail(ctx, in.Email)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	if existing != nil {
		return nil, common.Duplicate("email")
	}
	hash, err := s.hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	m := &models.Member{
		Name:             in.Name,
		Email:            in.Email,
		Password:         hash,
		Role:             in.Role,
		Department:       strings.TrimSpace(in.Department),
		Phone:            strings.TrimSpace(in.Phone),
		Address:          strings.TrimSpace(in.Address),
		RegistrationDate: s.now().UTC(),
		IsActive:         true,
	}
	if in.Role == models.RoleStudent {
		m.StudentID = strings.TrimSpace(in.StudentID)
	}
	if in.IsActive != nil {
		m.IsActive = *in.IsActive
	}
	// The unique email index still decides concurrent registrations.
	id, err := s.store.InsertMember(ctx, m)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	m.ID = id
	m.Password = ""
	return m, nil
}

// Update changes any member, including its role.
func (s *MemberService) Update(ctx context.Context, idHex string, in UpdateMemberInput) (*models.Member, error) {
	return s.update(ctx, idHex, in, "")
}

// UpdateStudent updates a member only if it is a student. The role itself
// cannot be changed here.
func (s *MemberService) UpdateStudent(ctx context.Context, idHex string, in UpdateMemberInput) (*models.Member, error) {
	in.Role = nil
	return s.update(ctx, idHex, in, models.RoleStudent)
}

// UpdatePatron updates a member only if it is a patron. Patrons carry no
// student ID, so that field is ignored.
func (s *MemberService) UpdatePatron(ctx context.Context, idHex string, in UpdateMemberInput) (*models.Member, error) {
	in.Role = nil
	in.StudentID = nil
	return s.update(ctx, idHex, in, models.RolePatron)
}

func (s *MemberService) update(ctx context.Context, idHex string, in UpdateMemberInput, requiredRole string) (*models.Member, error) {
	id, err := parseID("id", idHex)
	if err != nil {
		return nil, err
	}
	set := bson.M{}
	unset := bson.M{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, common.Validation("name", "name cannot be empty")
		}
		set["name"] = name
	}
	if in.Email != nil {
		email := normalizeEmail(*in.Email)
		if err := validate.Var(email, "required,email"); err != nil {
			return nil, common.Validation("email", "email must be a valid email address")
		}
		existing, err := s.store.MemberByEmail(ctx, email)
		if err != nil {
			return nil, common.FromStore(err, "member")
		}
		if existing != nil && existing.ID != id {
			return nil, common.Duplicate("email")
		}
		set["email"] = email
	}
	if in.Password != nil && *in.Password != "" {
		hash, err := s.hashPassword(*in.Password)
		if err != nil {
			return nil, err
		}
		set["password"] = hash
	}
	clearStudentID := false
	if in.Role != nil {
		role := strings.TrimSpace(strings.ToLower(*in.Role))
		if !slices.Contains(models.ValidRoles, role) {
			return nil, common.Validation("role", "role must be one of: %s", strings.Join(models.ValidRoles, " "))
		}
		set["role"] = role
		clearStudentID = role != models.RoleStudent
	}
	if clearStudentID {
		unset["studentId"] = ""
	} else if in.StudentID != nil {
		setOrUnset(set, unset, "studentId", *in.StudentID)
	}
	if in.Department != nil {
		setOrUnset(set, unset, "department", *in.Department)
	}
	if in.Phone != nil {
		setOrUnset(set, unset, "phone", *in.Phone)
	}
	if in.Address != nil {
		setOrUnset(set, unset, "address", *in.Address)
	}
	if in.IsActive != nil {
		set["isActive"] = *in.IsActive
	}

	if len(set) == 0 && len(unset) == 0 {
		m, err := s.Get(ctx, idHex)
		if err != nil {
			return nil, err
		}
		if requiredRole != "" && m.Role != requiredRole {
			return nil, roleMismatch(requiredRole)
		}
		return m, nil
	}

	filter := bson.M{"_id": id}
	if requiredRole != "" {
		filter["role"] = requiredRole
	}
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	m, err := s.store.UpdateMember(ctx, filter, update)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	if m != nil {
		return m, nil
	}
	if requiredRole != "" {
		existing, err := s.store.MemberByID(ctx, id)
		if err != nil {
			return nil, common.FromStore(err, "member")
		}
		if existing != nil {
			return nil, roleMismatch(requiredRole)
		}
	}
	return nil, common.NotFound("member")
}

func (s *MemberService) hashPassword(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", common.Validation("password", "password must be at most %d bytes", maxPasswordBytes)
	}
	hash, err := s.hasher.Hash(plaintext)
	if err != nil {
		return "", common.Internal(err)
	}
	return hash, nil
}

func roleMismatch(role string) error {
	return common.Validation("role", "member is not a %s", role)
}

func setOrUnset(set, unset bson.M, field, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		unset[field] = ""
		return
	}
	set[field] = value
}

// Delete removes a member. Members with unreturned loans are kept so that
// loans never reference a missing borrower.
func (s *MemberService) Delete(ctx context.Context, idHex string) error {
	id, err := parseID("id", idHex)
	if err != nil {
		return err
	}
	if s.loans != nil {
		n, err := s.loans.CountActiveLoans(ctx, "userId", id)
		if err != nil {
			return common.FromStore(err, "loan")
		}
		if n > 0 {
			return common.Validation("id", "member has active loans")
		}
	}
	deleted, err := s.store.DeleteMember(ctx, id)
	if err != nil {
		return common.FromStore(err, "member")
	}
	if !deleted {
		return common.NotFound("member")
	}
	return nil
}

func (s *MemberService) Stats(ctx context.Context) (models.MemberStats, error) {
	rows, err := s.store.MemberStatsByRole(ctx)
	if err != nil {
		return models.MemberStats{}, common.FromStore(err, "member")
	}
	stats := models.MemberStats{ByRole: []models.RoleStat{}}
	for _, r := range rows {
		stats.Total += r.Count
		stats.Active += r.Active
		stats.ByRole = append(stats.ByRole, r)
	}
	return stats, nil
}

// Login checks credentials. Unknown email and wrong password fail with the
// same error.
func (s *MemberService) Login(ctx context.Context, email, password string) (*models.Member, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, common.Validation("email", "email and password are required")
	}
	m, err := s.store.MemberByEmail(ctx, email)
	if err != nil {
		return nil, common.FromStore(err, "member")
	}
	if m == nil || !s.hasher.Verify(password, m.Password) {
		return nil, common.Unauthorized(invalidCredentials)
	}
	m.Password = ""
	return m, nil
}
