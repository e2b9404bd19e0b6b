package repository

import (
	"testing"

	"github.com/stretchr/testify/require"

	"innovatech/accounts/internal/models"
)

func boolPtr(v bool) *bool { return &v }

func TestBuildListQueryNoFilter(t *testing.T) {
	query, args := buildListQuery(UserFilter{})
	require.NotContains(t, query, "WHERE")
	require.Empty(t, args)
}

func TestBuildListQuerySingleFilter(t *testing.T) {
	userType := models.UserTypeAdmin
	query, args := buildListQuery(UserFilter{UserType: &userType})
	require.Contains(t, query, "WHERE user_type = $1")
	require.Equal(t, []any{models.UserTypeAdmin}, args)
}

func TestBuildListQueryAllFilters(t *testing.T) {
	userType := models.UserTypeUser
	query, args := buildListQuery(UserFilter{
		UserType:   &userType,
		IsActive:   boolPtr(true),
		IsApproved: boolPtr(false),
	})
	require.Contains(t, query, "user_type = $1 AND is_active = $2 AND is_approved = $3")
	require.Equal(t, []any{models.UserTypeUser, true, false}, args)
}
