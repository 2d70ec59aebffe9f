// Package handlers contains the handlers for the API
package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nsvirk/autotraderapi/internal/service"
	"github.com/nsvirk/autotraderapi/pkg/utils/response"
)

// SessionHandler is the handler for the session API
type SessionHandler struct {
	service *service.SessionService
}

// NewSessionHandler creates a new handler for the session API
func NewSessionHandler(service *service.SessionService) *SessionHandler {
	return &SessionHandler{service: service}
}

// GenerateSession generates a new session for the given user
func (h *SessionHandler) GenerateSession(c echo.Context) error {
	userid := c.FormValue("user_id")
	password := c.FormValue("password")
	totpValue := c.FormValue("totp_value")
	totpSecret := c.FormValue("totp_secret")

	if userid == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`user_id` is required")
	}
	if password == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`password` is required")
	}
	if totpValue == "" && totpSecret == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Either `totp_value` or `totp_secret` is required")
	}

	// generate the totp value, if totp_secret is provided
	if totpSecret != "" {
		totpValueGenerated, err := h.service.GenerateTOTP(totpSecret)
		if err != nil {
			return response.ErrorResponse(c, http.StatusUnauthorized, "AuthenticationException", err.Error())
		}
		totpValue = totpValueGenerated
	}

	sessionData, err := h.service.GenerateSession(userid, password, totpValue)
	if err != nil {
		return response.ErrorResponse(c, http.StatusUnauthorized, "AuthenticationException", err.Error())
	}

	return response.SuccessResponse(c, sessionData)
}

// GenerateTOTP generates a TOTP value for the given secret
func (h *SessionHandler) GenerateTOTP(c echo.Context) error {
	totpSecret := c.FormValue("totp_secret")
	if totpSecret == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`totp_secret` is required")
	}

	totpValue, err := h.service.GenerateTOTP(totpSecret)
	if err != nil {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", err.Error())
	}

	return response.SuccessResponse(c, totpValue)
}

// CheckSessionValid checks whether the given enctoken is still valid
func (h *SessionHandler) CheckSessionValid(c echo.Context) error {
	enctoken := c.FormValue("enctoken")
	if enctoken == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`enctoken` is required")
	}

	isValid, err := h.service.CheckEnctokenValid(enctoken)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}

	return response.SuccessResponse(c, map[string]bool{"is_valid": isValid})
}

// DeleteSession deletes the session for the given user
func (h *SessionHandler) DeleteSession(c echo.Context) error {
	userId := c.QueryParam("user_id")
	enctoken := c.QueryParam("enctoken")
	if userId == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`user_id` is a required field")
	}
	if enctoken == "" {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "`enctoken` is a required field")
	}

	rowsAffected, err := h.service.DeleteSession(userId, enctoken)
	if err != nil {
		return response.ErrorResponse(c, http.StatusInternalServerError, "ServerException", err.Error())
	}
	if rowsAffected == 0 {
		return response.ErrorResponse(c, http.StatusBadRequest, "InputException", "Session not found")
	}

	return response.SuccessResponse(c, true)
}
