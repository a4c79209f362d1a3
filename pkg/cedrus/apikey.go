package cedrus

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/stratusmedia/cedrus/pkg/types"
)

// apiKeyBytes is the length of a generated API key's random payload
// before base64 encoding.
const apiKeyBytes = 32

func generateAPIKey() (string, error) {
	buf := make([]byte, apiKeyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf), nil
}

func hashAPIKey(rawKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash api key: %w", err)
	}
	return string(hash), nil
}

// VerifyAPIKey reports whether rawKey matches hash. Collaborators that
// resolve an incoming API key to a project use this before trusting
// Core.ResolveOwner's lookup result.
func VerifyAPIKey(rawKey, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(rawKey)) == nil
}

// projectAdminLinkID names the template link, installed in the admin
// project, that scopes a project's owner as authorized to manage that
// one project.
func projectAdminLinkID(projectID types.ProjectID) types.PolicyID {
	return types.PolicyID(fmt.Sprintf("project-admin-%s", projectID.String()))
}
