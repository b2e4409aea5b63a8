package client

import (
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/fluhartyml/NightGardDDNS/internal/types"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v2"
)

// UsersFile is the user config path, relative to the working directory.
var UsersFile = "user.yaml"

const (
	defaultAdmin    = "admin"
	defaultPassword = "admin123"
)

// LoadUsersConfig reads UsersFile, creating it with a default admin if missing.
func LoadUsersConfig() error {
	if _, err := os.Stat(UsersFile); os.IsNotExist(err) {
		types.NightGardUsersConfig = &types.UsersConfig{
			Users: []types.UserConfig{{
				Username: defaultAdmin,
				Password: HashPassword(defaultPassword),
				Role:     "admin",
			}},
		}
		if err := SaveUsersConfig(); err != nil {
			return err
		}
		log.Printf("Created default %s (admin/%s), please change the password", UsersFile, defaultPassword)
		return nil
	}

	data, err := os.ReadFile(UsersFile)
	if err != nil {
		return fmt.Errorf("read user config file failed: %w", err)
	}

	config := &types.UsersConfig{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse user config file failed: %w", err)
	}

	types.NightGardUsersConfig = config
	return nil
}

func SaveUsersConfig() error {
	if types.NightGardUsersConfig == nil {
		return fmt.Errorf("user config is nil")
	}

	var b strings.Builder
	b.WriteString("# NightGard user config file\n")
	b.WriteString("users:\n")
	for _, user := range types.NightGardUsersConfig.Users {
		fmt.Fprintf(&b, "  - username: %s\n", user.Username)
		fmt.Fprintf(&b, "    password: %s\n", user.Password)
		fmt.Fprintf(&b, "    role: %s\n", user.Role)
		if user.Username == defaultAdmin && len(types.NightGardUsersConfig.Users) == 1 &&
			VerifyPassword(defaultPassword, user.Password) {
			fmt.Fprintf(&b, "    # default password: %s (please change it)\n", defaultPassword)
		}
	}

	if err := os.WriteFile(UsersFile, []byte(b.String()), 0o600); err != nil {
		return fmt.Errorf("save user config file failed: %w", err)
	}
	return nil
}

func FindUser(username string) *types.UserConfig {
	if types.NightGardUsersConfig == nil {
		return nil
	}
	for i := range types.NightGardUsersConfig.Users {
		if types.NightGardUsersConfig.Users[i].Username == username {
			return &types.NightGardUsersConfig.Users[i]
		}
	}
	return nil
}

// basicCredentials decodes an "Authorization: Basic" header.
func basicCredentials(header string) (string, string, bool) {
	encoded, ok := strings.CutPrefix(header, "Basic ")
	if !ok {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}

// Login exchanges Basic credentials for a session token.
func Login(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Missing authorization header"})
		return
	}
	username, password, ok := basicCredentials(authHeader)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
		return
	}

	user := FindUser(username)
	if user == nil || !VerifyPassword(password, user.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := GenerateToken(user.Username, user.Role)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	var body struct {
		Name string `json:"name"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			log.Printf("Warning: failed to parse login body: %v", err)
		}
	}
	name := body.Name
	if name == "" {
		name = "unknown client"
	}

	session := AddClientSession(token, name, user.Username)
	c.Set("username", user.Username)

	c.JSON(http.StatusOK, types.ClientResponse{
		Token: token,
		ID:    session.ID,
		Name:  name,
	})
}

func ChangePassword(c *gin.Context) {
	var req struct {
		OldPassword string `json:"oldPassword" binding:"required"`
		NewPassword string `json:"newPassword" binding:"required,min=8"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request parameters"})
		return
	}

	user := FindUser(c.GetString("username"))
	if user == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}
	if !VerifyPassword(req.OldPassword, user.Password) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid old password"})
		return
	}

	hashed := HashPassword(req.NewPassword)
	if hashed == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	user.Password = hashed
	if err := SaveUsersConfig(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save config: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Password updated successfully"})
}

func GetCurrentUser(c *gin.Context) {
	username := c.GetString("username")
	role := c.GetString("role")
	c.JSON(http.StatusOK, gin.H{
		"name":     username,
		"username": username,
		"role":     role,
		"admin":    role == "admin",
	})
}
