package handler

import (
	"net/http"

	"medauth-service/internal/auth/credentials"
	"medauth-service/internal/logger"

	"github.com/gin-gonic/gin"
)

type staffSignupRequest struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	LicenseNumber string `json:"license_number"`
	Department    string `json:"department"`
	Password      string `json:"password"`
	MediaRef      string `json:"media_ref"` // enrollment recording handle
}

// StaffSignup registers clinical staff: password credentials plus a
// biometric reference template enrolled through the matcher.
func (h *Handler) StaffSignup(c *gin.Context) {
	var req staffSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subjectID, err := h.accounts.RegisterStaff(c.Request.Context(), credentials.StaffSignup{
		Name:          req.Name,
		Email:         req.Email,
		LicenseNumber: req.LicenseNumber,
		Department:    req.Department,
		Password:      req.Password,
	})
	if err != nil {
		switch err {
		case credentials.ErrAlreadyRegistered:
			c.JSON(http.StatusConflict, gin.H{"error": "account_exists"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	body := gin.H{"subject_id": subjectID}

	if req.MediaRef != "" {
		templateRef, err := h.matcher.Enroll(c.Request.Context(), subjectID, req.MediaRef)
		if err != nil {
			// account exists; biometric enrollment can be retried
			logger.Warn("biometric enrollment failed during signup", map[string]any{
				"subject_id": subjectID,
				"error":      err.Error(),
			})
			body["biometric_enrolled"] = false
			c.JSON(http.StatusCreated, body)
			return
		}
		if err := h.accounts.SaveBiometricRef(c.Request.Context(), subjectID, templateRef); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
			return
		}
		body["biometric_enrolled"] = true
	}

	c.JSON(http.StatusCreated, body)
}

type patientSignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// PatientSignup registers a patient with password credentials. This is
// the enrollment origin for the patient password flow; patients arriving
// through OIDC are created by the identity resolver instead.
func (h *Handler) PatientSignup(c *gin.Context) {
	var req patientSignupRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.Password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	subjectID, err := h.accounts.RegisterPatient(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch err {
		case credentials.ErrAlreadyRegistered:
			c.JSON(http.StatusConflict, gin.H{"error": "account_exists"})
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"subject_id": subjectID})
}
