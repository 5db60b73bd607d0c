package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/meirborowski/veriflow/pkg/cli/config"
)

func writeSeedFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.toml")
	gt.NoError(t, os.WriteFile(path, []byte(body), 0600)).Required()
	return path
}

func TestLoadSeed(t *testing.T) {
	t.Run("loads a valid seed file", func(t *testing.T) {
		path := writeSeedFile(t, `
[project]
id = "proj-1"
name = "Checkout"
members = ["tester-1"]

[[user]]
id = "tester-1"
name = "Alex"
email = "alex@example.com"

[[release]]
id = "rel-1"
name = "2026.08"
status = "closed"

[[story]]
id = "s-1"
release = "rel-1"
title = "Checkout with saved card"
priority = "critical"

[[story.step]]
id = "s-1-step-1"
instruction = "open checkout"
`)

		seed := gt.R1(config.LoadSeed(path)).NoError(t)
		gt.Value(t, seed.Project.ID).Equal("proj-1")
		gt.Array(t, seed.Users).Length(1)
		gt.Array(t, seed.Releases).Length(1)
		gt.Array(t, seed.Stories).Length(1)
		gt.Array(t, seed.Stories[0].Steps).Length(1)
	})

	t.Run("rejects unreadable path", func(t *testing.T) {
		_, err := config.LoadSeed(filepath.Join(t.TempDir(), "missing.toml"))
		gt.Error(t, err)
	})

	t.Run("rejects malformed toml", func(t *testing.T) {
		path := writeSeedFile(t, `[project`)
		_, err := config.LoadSeed(path)
		gt.Error(t, err)
	})
}

func TestSeedDataValidate(t *testing.T) {
	valid := func() *config.SeedData {
		return &config.SeedData{
			Project: config.SeedProject{ID: "proj-1", Name: "Checkout", Members: []string{"tester-1"}},
			Users:   []config.SeedUser{{ID: "tester-1", Name: "Alex"}},
			Releases: []config.SeedRelease{
				{ID: "rel-1", Name: "2026.08", Status: "closed"},
			},
			Stories: []config.SeedStory{
				{
					ID: "s-1", Release: "rel-1", Title: "Checkout", Priority: "high",
					Steps: []config.SeedStep{{ID: "step-1", Instruction: "open checkout"}},
				},
			},
		}
	}

	t.Run("accepts consistent data", func(t *testing.T) {
		gt.NoError(t, valid().Validate())
	})

	t.Run("rejects member that is not a seeded user", func(t *testing.T) {
		seed := valid()
		seed.Project.Members = append(seed.Project.Members, "ghost")
		gt.Error(t, seed.Validate())
	})

	t.Run("rejects story referencing unknown release", func(t *testing.T) {
		seed := valid()
		seed.Stories[0].Release = "rel-missing"
		gt.Error(t, seed.Validate())
	})

	t.Run("rejects duplicate story IDs", func(t *testing.T) {
		seed := valid()
		seed.Stories = append(seed.Stories, seed.Stories[0])
		gt.Error(t, seed.Validate())
	})

	t.Run("rejects duplicate step IDs within a story", func(t *testing.T) {
		seed := valid()
		seed.Stories[0].Steps = append(seed.Stories[0].Steps, seed.Stories[0].Steps[0])
		gt.Error(t, seed.Validate())
	})
}
