package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/thesavant42/omnidash/internal/api"
	"github.com/thesavant42/omnidash/internal/vault"
)

type handlers struct {
	vault       *vault.Vault
	fetcher     *api.Fetcher
	validateURL string
	proxyHosts  []string
	logger      *log.Logger
}

func jsonError(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

func (h *handlers) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "version": Version})
}

func (h *handlers) saveCredentials(c *gin.Context) {
	var in vault.Credentials
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(in.AccessKey) == "" || strings.TrimSpace(in.SecretKey) == "" {
		jsonError(c, http.StatusBadRequest, "Access key and secret key are required")
		return
	}
	if err := h.vault.Save(in); err != nil {
		if h.logger != nil {
			h.logger.Error("Failed to save credentials", "err", err)
		}
		jsonError(c, http.StatusInternalServerError, "Failed to save credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Credentials saved securely"})
}

func (h *handlers) credentialsStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.vault.Status())
}

func (h *handlers) deleteCredentials(c *gin.Context) {
	if err := h.vault.Delete(); err != nil {
		jsonError(c, http.StatusInternalServerError, "Failed to delete credentials")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Credentials deleted"})
}

// validateCredentials reads a public item with the stored keys.
// Every outcome is a 200 with valid true/false; only vault failures are 500s.
func (h *handlers) validateCredentials(c *gin.Context) {
	creds, err := h.vault.Load()
	if errors.Is(err, vault.ErrNoCredentials) || errors.Is(err, vault.ErrInvalidCiphertext) {
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "No credentials stored"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "error": err.Error()})
		return
	}

	preview := vault.Preview(creds.AccessKey)
	resp, err := h.fetcher.Send(c.Request.Context(), api.Request{
		Method: http.MethodGet,
		URL:    h.validateURL,
		Header: http.Header{
			"Authorization": {api.AuthorizationHeader(creds.AccessKey, creds.SecretKey)},
			"User-Agent":    {"Archive-OmniDash/1.0"},
			"Accept":        {"application/json"},
		},
	})

	var statusErr *api.HTTPStatusError
	switch {
	case err == nil:
		var body struct {
			Metadata json.RawMessage `json:"metadata"`
		}
		if json.Unmarshal(resp.Body, &body) != nil || len(body.Metadata) == 0 || string(body.Metadata) == "null" {
			c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Unexpected response format from Archive.org"})
			return
		}
		if h.logger != nil {
			h.logger.Info("Credentials validated", "access_key", preview)
		}
		c.JSON(http.StatusOK, gin.H{"valid": true, "message": "Credentials validated successfully with Archive.org API"})

	case errors.As(err, &statusErr):
		if h.logger != nil {
			h.logger.Warn("Credentials rejected", "access_key", preview, "status", statusErr.StatusCode)
		}
		var msg string
		switch statusErr.StatusCode {
		case http.StatusUnauthorized:
			msg = "Invalid credentials - Archive.org returned 401 Unauthorized"
		case http.StatusForbidden:
			msg = "Invalid credentials - Archive.org returned 403 Forbidden"
		default:
			msg = fmt.Sprintf("Archive.org API returned status %d", statusErr.StatusCode)
		}
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": msg})

	default:
		if h.logger != nil {
			h.logger.Error("Network error during validation", "err", err)
		}
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": "Network error: " + err.Error()})
	}
}

type proxyRequest struct {
	URL          string          `json:"url"`
	Method       string          `json:"method"`
	Body         json.RawMessage `json:"body"`
	RequiresAuth bool            `json:"requiresAuth"`
}

// proxyArchive forwards a JSON request to archive.org, optionally with the stored keys
func (h *handlers) proxyArchive(c *gin.Context) {
	var in proxyRequest
	if err := c.ShouldBindJSON(&in); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid json body")
		return
	}
	if !h.allowedTarget(in.URL) {
		jsonError(c, http.StatusBadRequest, "url must be an archive.org address")
		return
	}

	method := strings.ToUpper(strings.TrimSpace(in.Method))
	if method == "" {
		method = http.MethodGet
	}

	header := http.Header{"Content-Type": {"application/json"}}
	if in.RequiresAuth {
		creds, err := h.vault.Load()
		if err != nil {
			jsonError(c, http.StatusUnauthorized, "Credentials not configured")
			return
		}
		header.Set("Authorization", api.AuthorizationHeader(creds.AccessKey, creds.SecretKey))
	}

	req := api.Request{Method: method, URL: in.URL, Header: header}
	if len(in.Body) > 0 && !bytes.Equal(in.Body, []byte("null")) {
		req.Body = in.Body
	}

	resp, err := h.fetcher.Send(c.Request.Context(), req)
	var statusErr *api.HTTPStatusError
	if err != nil && !errors.As(err, &statusErr) {
		if h.logger != nil {
			h.logger.Error("Proxy error", "url", in.URL, "err", err)
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy request failed", "details": err.Error()})
		return
	}

	if !json.Valid(resp.Body) {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Proxy request failed", "details": "upstream returned non-JSON body"})
		return
	}
	c.Data(resp.StatusCode, "application/json; charset=utf-8", resp.Body)
}

func (h *handlers) allowedTarget(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range h.proxyHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return true
		}
	}
	return false
}
