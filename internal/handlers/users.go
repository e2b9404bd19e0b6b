package handlers

import (
	"errors"
	"net/http"
	"regexp"
	"strconv"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"

	"innovatech/accounts/internal/middleware"
	"innovatech/accounts/internal/models"
	"innovatech/accounts/internal/repository"
	"innovatech/accounts/internal/service"
)

// serializeUser renders the caller-facing view of an account. The
// privileged flags are visible to staff callers only.
func serializeUser(user models.User, staffView bool) gin.H {
	out := gin.H{
		"id":          user.ID,
		"email":       user.Email,
		"first_name":  user.FirstName,
		"last_name":   user.LastName,
		"is_active":   user.IsActive,
		"date_joined": user.DateJoined,
	}
	if staffView {
		out["user_type"] = user.UserType
		out["is_approved"] = user.IsApproved
		out["is_staff"] = user.IsStaff
		out["is_superuser"] = user.IsSuperuser
	}
	return out
}

func (h HandlerSet) ListUsers(c *gin.Context) {
	var filter repository.UserFilter

	if v := c.Query("user_type"); v != "" {
		userType := models.UserType(v)
		if userType != models.UserTypeUser && userType != models.UserTypeAdmin {
			c.JSON(http.StatusBadRequest, gin.H{"message": "invalid user_type filter"})
			return
		}
		filter.UserType = &userType
	}

	for _, q := range []struct {
		name   string
		target **bool
	}{
		{"is_active", &filter.IsActive},
		{"is_approved", &filter.IsApproved},
	} {
		if v := c.Query(q.name); v != "" {
			parsed, err := strconv.ParseBool(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"message": "invalid " + q.name + " filter"})
				return
			}
			*q.target = &parsed
		}
	}

	users, err := h.users.List(c.Request.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("user list failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	// The route is staff-gated, so the full view applies.
	resp := make([]gin.H, 0, len(users))
	for _, user := range users {
		resp = append(resp, serializeUser(user, true))
	}
	c.JSON(http.StatusOK, resp)
}

func (h HandlerSet) GetUser(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)

	user, err := h.users.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("user fetch failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	c.JSON(http.StatusOK, serializeUser(user, caller.IsStaff))
}

type updateUserRequest struct {
	Email     *string `json:"email"`
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`

	UserType    *models.UserType `json:"user_type"`
	IsApproved  *bool            `json:"is_approved"`
	IsStaff     *bool            `json:"is_staff"`
	IsSuperuser *bool            `json:"is_superuser"`
}

var emailRule = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

func (r updateUserRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Match(emailRule).Error("invalid email")),
		validation.Field(&r.Password, validation.Length(8, 0)),
		validation.Field(&r.FirstName, validation.Length(0, 100), nameRule),
		validation.Field(&r.LastName, validation.Length(0, 100), nameRule),
		validation.Field(&r.UserType, validation.In(models.UserTypeUser, models.UserTypeAdmin)),
	)
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	caller, _ := middleware.CurrentUser(c)

	var req updateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"errors": err})
		return
	}

	user, err := h.users.Update(c.Request.Context(), c.Param("id"), service.UpdateInput{
		Email:       req.Email,
		Password:    req.Password,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		UserType:    req.UserType,
		IsApproved:  req.IsApproved,
		IsStaff:     req.IsStaff,
		IsSuperuser: req.IsSuperuser,
	}, caller.IsStaff)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
		case errors.Is(err, service.ErrEmailTaken):
			c.JSON(http.StatusBadRequest, gin.H{"errors": gin.H{"email": "Email already exists"}})
		default:
			h.log.Error().Err(err).Msg("user update failed")
			c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		}
		return
	}

	c.JSON(http.StatusOK, serializeUser(user, caller.IsStaff))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"message": "user not found"})
			return
		}
		h.log.Error().Err(err).Msg("user delete failed")
		c.JSON(http.StatusInternalServerError, gin.H{"message": "internal error"})
		return
	}

	c.Status(http.StatusNoContent)
}
