package schemas

import "github.com/quatton/qtube/pkg/session"

type LoginRequest struct {
	Username string `json:"username,omitempty" doc:"Username; either this or email is required"`
	Email    string `json:"email,omitempty" doc:"Email; either this or username is required"`
	Password string `json:"password,omitempty" doc:"Account password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken,omitempty" doc:"Refresh token, when not sent as a cookie"`
}

type LoginData struct {
	User         session.PublicUser `json:"user"`
	AccessToken  string             `json:"accessToken"`
	RefreshToken string             `json:"refreshToken"`
}

type TokenData struct {
	AccessToken  string `json:"accessToken" doc:"New short-lived access token"`
	RefreshToken string `json:"refreshToken" doc:"Rotated refresh token"`
	TokenType    string `json:"tokenType" doc:"Token type descriptor" example:"bearer"`
	ExpiresIn    int    `json:"expiresIn" doc:"Access token lifetime in seconds"`
}

type Empty struct{}

type HealthData struct {
	Status string `json:"status" example:"ok"`
}
