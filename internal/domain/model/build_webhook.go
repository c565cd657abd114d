package model

import (
	"encoding/json"
	"fmt"
	"strings"

	"build-notifier/internal/domain"
)

const BuildStatusFailed = "FAILED"

type CommitInfo struct {
	Hash    string `json:"hash"`
	Author  string `json:"author"`
	Message string `json:"message"`
}

type BuildInfo struct {
	BuildResultKey string `json:"buildResultKey"`
	Status         string `json:"status"`
	BuildPlanName  string `json:"buildPlanName"`
}

// BuildWebhook is the Bamboo build event, either posted over HTTP or relayed on the bus.
type BuildWebhook struct {
	ServiceName   string     `json:"serviceName"`
	UUID          string     `json:"uuid"`
	RepositoryURL string     `json:"repositoryUrl"`
	BranchName    string     `json:"branchName"`
	Commit        CommitInfo `json:"commit"`
	Build         BuildInfo  `json:"build"`
	Time          string     `json:"time"`
}

func (w *BuildWebhook) Failed() bool {
	return strings.EqualFold(w.Build.Status, BuildStatusFailed)
}

// PlanName is the subscription key the event is delivered to.
func (w *BuildWebhook) PlanName() string {
	if strings.TrimSpace(w.Build.BuildPlanName) != "" {
		return domain.NormalizePlanName(w.Build.BuildPlanName)
	}
	return domain.TrimBuildNumber(w.Build.BuildResultKey)
}

// ParseBuildWebhook decodes a build event. Events without a service name are rejected.
func ParseBuildWebhook(b []byte) (*BuildWebhook, error) {
	var w BuildWebhook
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("decode build webhook: %w", err)
	}
	if w.ServiceName == "" {
		return nil, fmt.Errorf("build webhook: %w", domain.ErrEmptyPayload)
	}
	return &w, nil
}
