package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"shop-svc/events"
	"shop-svc/middleware"
	"shop-svc/models"

	"github.com/gin-gonic/gin"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const tokenTTL = 24 * time.Hour

type AuthHandler struct {
	db        *sql.DB
	jwtSecret []byte
	bus       *events.Bus
	logger    *zap.Logger
}

func NewAuthHandler(db *sql.DB, jwtSecret []byte, bus *events.Bus, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		db:        db,
		jwtSecret: jwtSecret,
		bus:       bus,
		logger:    logger,
	}
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Username)
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Name or username is required"})
		return
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("Failed to hash password", zap.String("trace_id", middleware.GetTraceID(c.Request.Context())), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	// The unique index on email decides races between concurrent registrations.
	var user models.User
	err = h.db.QueryRowContext(c.Request.Context(),
		"INSERT INTO users (name, email, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id, name, email, role, created_at",
		name, strings.ToLower(req.Email), string(hashedPassword), models.RoleCustomer,
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			c.JSON(http.StatusConflict, gin.H{"error": "User already exists"})
			return
		}
		h.logger.Error("Failed to create user", zap.String("trace_id", middleware.GetTraceID(c.Request.Context())), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Info("User registered",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int64("user_id", user.ID),
	)
	c.JSON(http.StatusCreated, user)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, name, email, role, password_hash, created_at FROM users WHERE email = $1",
		strings.ToLower(req.Email),
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.logger.Error("Database error", zap.String("trace_id", middleware.GetTraceID(c.Request.Context())), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, err := middleware.IssueToken(h.jwtSecret, user, tokenTTL)
	if err != nil {
		h.logger.Error("Failed to generate token", zap.String("trace_id", middleware.GetTraceID(c.Request.Context())), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	h.bus.Publish(c.Request.Context(), events.SessionEvent{Kind: events.SessionStarted, UserID: user.ID})

	h.logger.Info("User logged in",
		zap.String("trace_id", middleware.GetTraceID(c.Request.Context())),
		zap.Int64("user_id", user.ID),
	)
	c.JSON(http.StatusOK, models.LoginResponse{
		Token: token,
		User:  user,
	})
}

// Logout ends the session for server-side state only; the stateless token
// stays valid until it expires.
func (h *AuthHandler) Logout(c *gin.Context) {
	userID := middleware.UserID(c)
	h.bus.Publish(c.Request.Context(), events.SessionEvent{Kind: events.SessionEnded, UserID: userID})
	h.logger.Info("User logged out", zap.Int64("user_id", userID))
	c.Status(http.StatusNoContent)
}

func (h *AuthHandler) Profile(c *gin.Context) {
	var user models.User
	err := h.db.QueryRowContext(c.Request.Context(),
		"SELECT id, name, email, role, created_at FROM users WHERE id = $1",
		middleware.UserID(c),
	).Scan(&user.ID, &user.Name, &user.Email, &user.Role, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
