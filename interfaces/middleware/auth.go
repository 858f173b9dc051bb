package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"

	"linkedpost/domain/dto"
	"linkedpost/domain/model"
	"linkedpost/infrastructure/logger"
)

// Auth accepts HS256 bearer tokens signed with secretKey and exposes the
// issuer as "user_id" to downstream handlers.
func Auth(secretKey string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		res := dto.Res{ResponseCode: "401", ResponseMessage: "Unauthorized"}

		authorization := ctx.Request.Header.Get("Authorization")
		tokenString, ok := strings.CutPrefix(authorization, "Bearer ")
		if !ok || tokenString == "" {
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		userClaims, token, err := getClaim(tokenString, secretKey)
		if err != nil || token == nil || !token.Valid {
			res.ResponseMessage = reason(err)
			logger.GetLogger().WithField("error", err).Debug("Rejected bearer token")
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}
		if userClaims.Issuer == "" {
			res.ResponseMessage = "Token has no issuer"
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, res)
			return
		}

		ctx.Set("user_id", userClaims.Issuer)
		ctx.Set("user_name", userClaims.UserName)
		ctx.Next()
	}
}

func reason(err error) string {
	var ve *jwt.ValidationError
	if errors.As(err, &ve) {
		if ve.Errors&jwt.ValidationErrorMalformed != 0 {
			return "That's not even a token"
		}
		if ve.Errors&(jwt.ValidationErrorExpired|jwt.ValidationErrorNotValidYet) != 0 {
			// Token is either expired or not active yet
			return "Timing is everything"
		}
		return fmt.Sprintf("Couldn't handle this token:%v", err)
	}
	return "Unauthorized"
}

func getClaim(tokenString, secretKey string) (model.UserClaims, *jwt.Token, error) {
	var userClaims model.UserClaims
	token, err := jwt.ParseWithClaims(
		tokenString,
		&userClaims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secretKey), nil
		},
	)
	return userClaims, token, err
}
