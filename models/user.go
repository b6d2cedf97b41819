package models

import (
	"context"
	"errors"
	"html"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/medequip/equipment_backend/config"
	"github.com/medequip/equipment_backend/utils"
	"golang.org/x/crypto/bcrypt"
)

type UserRole string

const (
	RoleGlobal         UserRole = "global"
	RoleAdmin          UserRole = "admin"
	RoleEquipmentMgr   UserRole = "to_qltb"
	RoleTechnician     UserRole = "technician"
	RoleRegionalLeader UserRole = "regional_leader"
	RoleUser           UserRole = "user"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUserDisabled       = errors.New("user is disabled")
	ErrDuplicateUsername  = errors.New("duplicate username")
)

type User struct {
	ID       int      `gorm:"primary_key" json:"id"`
	Username string   `gorm:"size:100;not null;unique" json:"username"`
	FullName string   `gorm:"size:150;not null" json:"full_name"`
	Password string   `gorm:"size:255;not null" json:"-"`
	Role     UserRole `gorm:"size:30;not null;default:user" json:"role"`
	// TenantId is the facility (don vi) the user belongs to.
	TenantId   int       `gorm:"index;not null;default:0" json:"don_vi"`
	Department string    `gorm:"size:150" json:"khoa_phong"`
	IsActive   *bool     `gorm:"not null" json:"is_active"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	Username   string   `json:"username" validate:"required,min=3,max=100"`
	FullName   string   `json:"full_name" validate:"required"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role" validate:"required,oneof=global admin to_qltb technician regional_leader user"`
	TenantId   int      `json:"don_vi" validate:"gte=0"`
	Department string   `json:"khoa_phong"`
	IsActive   *bool    `json:"is_active" validate:"required"`
}

// Session is what a login token resolves to.
type Session struct {
	UserId   int      `json:"user_id"`
	Username string   `json:"username"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
	TenantId int      `json:"don_vi"`
}

type LoginInfo struct {
	Token string `json:"token"`
	Session
}

/*
caches:
	Token:$token     -> Session
	Tokens:$username -> set of live tokens
*/

func tokenKey(token string) string {
	return "Token:" + token
}

func tokensKey(username string) string {
	return "Tokens:" + username
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {
	db := config.GetDB()
	if db == nil {
		return nil, errors.New("database is not connected")
	}

	var user User
	if err := db.WithContext(ctx).Where("username = ?", strings.TrimSpace(username)).Take(&user).Error; err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := utils.ComparePassword(user.Password, password); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.DereferencePtr(user.IsActive, false) {
		return nil, ErrUserDisabled
	}

	token := uuid.NewString()
	session := user.Session()
	ttl := config.Load().SessionTTL

	if err := config.AddRedisSet(ctx, tokensKey(user.Username), token); err != nil {
		return nil, err
	}
	if err := config.SetRedisObject(ctx, tokenKey(token), session, ttl); err != nil {
		return nil, err
	}
	return &LoginInfo{Token: token, Session: session}, nil
}

// destroy current session
func Logout(ctx context.Context) (bool, error) {
	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("token is required")
	}
	if err := config.RemoveRedisKey(ctx, tokenKey(token)); err != nil {
		return false, err
	}
	if username, ok := utils.GetUsernameFromContext(ctx); ok && username != "" {
		if err := config.RemoveRedisSetMember(ctx, tokensKey(username), token); err != nil {
			return false, err
		}
	}
	return true, nil
}

func GetSession(ctx context.Context, token string) (*Session, bool, error) {
	var session Session
	found, err := config.GetRedisObject(ctx, tokenKey(token), &session)
	if err != nil || !found {
		return nil, false, err
	}
	return &session, true, nil
}

func (user User) Session() Session {
	return Session{
		UserId:   user.ID,
		Username: user.Username,
		FullName: user.FullName,
		Role:     user.Role,
		TenantId: user.TenantId,
	}
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	user := User{
		Username:   html.EscapeString(strings.TrimSpace(input.Username)),
		FullName:   strings.TrimSpace(input.FullName),
		Password:   string(hashedPassword),
		Role:       input.Role,
		TenantId:   input.TenantId,
		Department: input.Department,
		IsActive:   input.IsActive,
	}
	if err := config.GetDB().WithContext(ctx).Create(&user).Error; err != nil {
		if isDuplicateKey(err) {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	return &user, nil
}

// SetPassword re-hashes the password and drops every live session of the user.
func (user *User) SetPassword(ctx context.Context, password string) error {
	hashedPassword, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := config.GetDB().WithContext(ctx).Model(user).UpdateColumn("password", string(hashedPassword)).Error; err != nil {
		return err
	}
	user.Password = string(hashedPassword)
	return user.DestroyAllSessions(ctx)
}

func (user *User) DestroyAllSessions(ctx context.Context) error {
	tokens, err := config.GetRedisSetMembers(ctx, tokensKey(user.Username))
	if err != nil {
		return err
	}
	keys := []string{tokensKey(user.Username)}
	for _, token := range tokens {
		keys = append(keys, tokenKey(token))
	}
	return config.RemoveRedisKey(ctx, keys...)
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	if err := config.GetDB().WithContext(ctx).Where("username = ?", username).Take(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

func isDuplicateKey(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}
