package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for members.
const (
	RoleStudent = "student"
	RolePatron  = "patron"
	RoleAdmin   = "admin"
)

var ValidRoles = []string{RoleStudent, RolePatron, RoleAdmin}

type Member struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	Password         string             `bson:"password,omitempty" json:"-"` // bcrypt hash
	Role             string             `bson:"role" json:"role"`
	StudentID        string             `bson:"studentId,omitempty" json:"studentId,omitempty"`
	Department       string             `bson:"department,omitempty" json:"department,omitempty"`
	Phone            string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address          string             `bson:"address,omitempty" json:"address,omitempty"`
	RegistrationDate time.Time          `bson:"registrationDate" json:"registrationDate"`
	IsActive         bool               `bson:"isActive" json:"isActive"`
}

// RoleStat is one row of the members-by-role report.
type RoleStat struct {
	Role   string `bson:"_id" json:"role"`
	Count  int64  `bson:"count" json:"count"`
	Active int64  `bson:"active" json:"active"`
}

type MemberStats struct {
	Total  int64      `json:"total"`
	Active int64      `json:"active"`
	ByRole []RoleStat `json:"byRole"`
}
