package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/BaSui01/docflow/api"
)

// OAuthExchanger GitHub OAuth 授权码流程，*repo.OAuth 实现
type OAuthExchanger interface {
	Configured() bool
	ClientID() string
	RedirectURL() string
	Scopes() []string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// AuthHandler 处理 /auth/github/*
type AuthHandler struct {
	oauth  OAuthExchanger
	logger *zap.Logger
}

// NewAuthHandler 创建 OAuth 处理器
func NewAuthHandler(oauth OAuthExchanger, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{oauth: oauth, logger: logger.With(zap.String("component", "auth_handler"))}
}

// HandleGitHubConfig 处理 GET /auth/github/config
// @Summary GitHub OAuth 前端配置
// @Tags 认证
// @Produce json
// @Success 200 {object} Response{data=api.GitHubConfigResponse}
// @Router /auth/github/config [get]
func (h *AuthHandler) HandleGitHubConfig(w http.ResponseWriter, r *http.Request) {
	resp := api.GitHubConfigResponse{
		OAuthConfigured: h.oauth.Configured(),
		Scopes:          h.oauth.Scopes(),
	}
	if resp.OAuthConfigured {
		resp.ClientID = h.oauth.ClientID()
		resp.RedirectURI = h.oauth.RedirectURL()
		resp.AuthorizeURL = h.oauth.AuthCodeURL(r.URL.Query().Get("state"))
	}
	WriteSuccess(w, r, http.StatusOK, resp)
}

// HandleGitHubToken 处理 POST /auth/github/token
// @Summary 授权码换取访问令牌
// @Tags 认证
// @Accept json
// @Produce json
// @Param request body api.GitHubTokenRequest true "授权码"
// @Success 200 {object} Response{data=api.GitHubTokenResponse}
// @Failure 400 {object} Response
// @Failure 503 {object} Response
// @Router /auth/github/token [post]
func (h *AuthHandler) HandleGitHubToken(w http.ResponseWriter, r *http.Request) {
	var req api.GitHubTokenRequest
	if err := DecodeJSONBody(w, r, TokenSchema, &req); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	tok, err := h.oauth.Exchange(r.Context(), req.Code)
	if err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	resp := api.GitHubTokenResponse{
		AccessToken: tok.AccessToken,
		TokenType:   tok.Type(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry
		resp.Expiry = &exp
	}
	WriteSuccess(w, r, http.StatusOK, resp)
}
