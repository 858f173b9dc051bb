package utils

import (
	"time"

	"github.com/golang-jwt/jwt"

	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
)

func GetCurrentTime() time.Time {
	return time.Now().UTC()
}

// GenerateToken signs a bearer token for userID, as issued by the account
// service.
func GenerateToken(userID, userName, secretKey string, ttl time.Duration) (string, error) {
	now := GetCurrentTime()
	claims := model.UserClaims{
		UserName: userName,
		StandardClaims: jwt.StandardClaims{
			Issuer:    userID,
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(secretKey))
	if err != nil {
		logger.GetLogger().WithField("error", err).Error("Error while generate token")
		return "", err
	}
	return tokenString, nil
}
