package mona

import (
	"context"
	"encoding/json"
	"fmt"
)

// UploadResult reports the outcome of a configuration upload.
type UploadResult struct {
	Success     bool   `json:"success"`
	NewConfigID string `json:"new_config_id"`
}

// UploadConfig uploads a new monitoring configuration. The config's first
// level of keys should be the context classes; the tenant wrapping is added
// here. Returns a ConfigError when the app-server rejects the upload.
func (c *Client) UploadConfig(ctx context.Context, config map[string]any, commitMessage string) (*UploadResult, error) {
	if err := c.auth.Guard(ctx); err != nil {
		return nil, err
	}
	tenant, err := c.tenantID()
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("resolving tenant id: %v", err)}
	}

	payload := map[string]any{
		"config":         map[string]any{tenant: config},
		"author":         c.cfg.APIKey,
		"commit_message": commitMessage,
		"user_id":        tenant,
	}
	status, body, err := c.postJSON(ctx, c.appServerURL(tenant)+"/upload_config", payload)
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("cannot connect to app-server: %v", err)}
	}

	var reply struct {
		ResponseData struct {
			NewConfigID string `json:"new_config_id"`
		} `json:"response_data"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("unexpected upload_config response: %v", err)}
	}
	result := &UploadResult{
		Success:     status >= 200 && status < 300,
		NewConfigID: reply.ResponseData.NewConfigID,
	}
	if !result.Success {
		return result, &ConfigError{Message: "configuration upload failed"}
	}
	return result, nil
}

// GetConfig retrieves the tenant's current configuration, keyed by tenant id
// the way UploadConfig expects it back.
func (c *Client) GetConfig(ctx context.Context) (map[string]any, error) {
	if err := c.auth.Guard(ctx); err != nil {
		return nil, err
	}
	tenant, err := c.tenantID()
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("resolving tenant id: %v", err)}
	}

	status, body, err := c.postJSON(ctx, c.appServerURL(tenant)+"/configs", map[string]any{})
	if err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("cannot connect to app-server: %v", err)}
	}
	if status < 200 || status >= 300 {
		return nil, &ConfigError{Message: "configuration retrieval failed"}
	}

	var reply struct {
		ResponseData struct {
			RawConfigurationData map[string]any `json:"raw_configuration_data"`
		} `json:"response_data"`
	}
	if err := json.Unmarshal(body, &reply); err != nil {
		return nil, &ConfigError{Message: fmt.Sprintf("unexpected configs response: %v", err)}
	}
	return map[string]any{tenant: reply.ResponseData.RawConfigurationData}, nil
}
