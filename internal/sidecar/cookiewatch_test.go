package sidecar

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picdock/engine/internal/model"
)

type fakeJar struct {
	calls  atomic.Int32
	values []string
}

func (j *fakeJar) CookiesForDomain(string) string {
	i := j.calls.Add(1) - 1
	if int(i) >= len(j.values) {
		return j.values[len(j.values)-1]
	}
	return j.values[i]
}

func TestWatchCookieJar_ReturnsOnceAllFieldsPresent(t *testing.T) {
	jar := &fakeJar{values: []string{"", "SUB=1", "SUB=1; SUBP=2"}}
	rule := CookieJarRule{LoginDomain: "weibo.com", RequiredFields: []string{"SUB", "SUBP"}, InitialDelay: time.Millisecond, PollInterval: 5 * time.Millisecond}

	cookie, err := WatchCookieJar(context.Background(), jar, rule)
	require.NoError(t, err)
	assert.Equal(t, "SUB=1; SUBP=2", cookie)
}

func TestWatchCookieJar_HonorsCancellation(t *testing.T) {
	jar := &fakeJar{values: []string{""}}
	rule := CookieJarRule{LoginDomain: "weibo.com", RequiredFields: []string{"SUB"}, InitialDelay: time.Millisecond, PollInterval: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WatchCookieJar(ctx, jar, rule)
	require.Error(t, err)
}

func TestRuleFor(t *testing.T) {
	rule, ok := RuleFor(model.BackendWeibo)
	require.True(t, ok)
	assert.Equal(t, "weibo.com", rule.LoginDomain)

	_, ok = RuleFor(model.BackendR2)
	assert.False(t, ok)
}

func TestHasAllFields(t *testing.T) {
	assert.True(t, hasAllFields("SUB=1; SUBP=2", []string{"SUB", "SUBP"}))
	assert.False(t, hasAllFields("SUB=1", []string{"SUB", "SUBP"}))
	assert.False(t, hasAllFields("", []string{"SUB"}))
}
