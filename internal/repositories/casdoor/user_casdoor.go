package casdoor

import (
	"context"
	"fmt"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/hezretaly/toefl/internal/models"
	"github.com/hezretaly/toefl/internal/repositories"
)

// CasdoorConfig holds the configuration for Casdoor connection
type CasdoorConfig struct {
	Endpoint         string
	ClientID         string
	ClientSecret     string
	Certificate      string
	OrganizationName string
	ApplicationName  string
}

// Enabled reports whether single sign-on is configured
func (c CasdoorConfig) Enabled() bool {
	return c.Endpoint != "" && c.Certificate != ""
}

type UserCasdoor struct {
	client *casdoorsdk.Client
	config CasdoorConfig
}

func NewUserCasdoor(config CasdoorConfig) repositories.IdentityDirectory {
	client := casdoorsdk.NewClient(
		config.Endpoint,
		config.ClientID,
		config.ClientSecret,
		config.Certificate,
		config.OrganizationName,
		config.ApplicationName,
	)

	return &UserCasdoor{
		client: client,
		config: config,
	}
}

// ResolveToken verifies a Casdoor issued JWT and returns the asserted user
func (u *UserCasdoor) ResolveToken(ctx context.Context, token string) (*repositories.ExternalIdentity, error) {
	claims, err := u.client.ParseJwtToken(token)
	if err != nil {
		return nil, fmt.Errorf("invalid casdoor token: %w", err)
	}

	if claims.User.Id == "" && claims.User.Name == "" {
		return nil, fmt.Errorf("casdoor token carries no user")
	}
	if claims.User.Email == "" {
		return nil, fmt.Errorf("casdoor user %s has no email", claims.User.Name)
	}

	return u.convertCasdoorUser(&claims.User), nil
}

// ===== CONVERSION METHODS =====

func (u *UserCasdoor) convertCasdoorUser(casdoorUser *casdoorsdk.User) *repositories.ExternalIdentity {
	username := casdoorUser.Name
	if username == "" {
		username = casdoorUser.Email
	}

	return &repositories.ExternalIdentity{
		ExternalID: casdoorUser.Id,
		Username:   username,
		Email:      strings.ToLower(casdoorUser.Email),
		Role:       u.convertCasdoorRoles(casdoorUser),
	}
}

// convertCasdoorRoles picks the strongest platform role among the Casdoor
// roles and user type.
func (u *UserCasdoor) convertCasdoorRoles(casdoorUser *casdoorsdk.User) models.UserRole {
	if casdoorUser.IsAdmin {
		return models.RoleAdmin
	}

	names := []string{casdoorUser.Type}
	for _, role := range casdoorUser.Roles {
		if role != nil {
			names = append(names, role.Name)
		}
	}

	best := models.RoleStudent
	for _, name := range names {
		switch mapped := mapCasdoorRole(name); mapped {
		case models.RoleAdmin:
			return models.RoleAdmin
		case models.RoleTeacher:
			best = models.RoleTeacher
		}
	}
	return best
}

func mapCasdoorRole(casdoorType string) models.UserRole {
	switch strings.ToLower(casdoorType) {
	case "admin", "administrator":
		return models.RoleAdmin
	case "teacher", "instructor", "reviewer":
		return models.RoleTeacher
	default:
		return models.RoleStudent
	}
}
