package config

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"github.com/pelletier/go-toml/v2"
)

// SeedData is the TOML layout of a seed file: the supporting entities a
// test session needs (project, testers, releases and their story
// snapshots). Executions are never seeded.
type SeedData struct {
	Project  SeedProject   `toml:"project"`
	Users    []SeedUser    `toml:"user"`
	Releases []SeedRelease `toml:"release"`
	Stories  []SeedStory   `toml:"story"`
}

type SeedProject struct {
	ID      string   `toml:"id"`
	Name    string   `toml:"name"`
	Members []string `toml:"members"`
}

type SeedUser struct {
	ID    string `toml:"id"`
	Name  string `toml:"name"`
	Email string `toml:"email"`
}

type SeedRelease struct {
	ID     string `toml:"id"`
	Name   string `toml:"name"`
	Status string `toml:"status"`
}

type SeedStory struct {
	ID          string     `toml:"id"`
	Release     string     `toml:"release"`
	Title       string     `toml:"title"`
	Description string     `toml:"description"`
	Priority    string     `toml:"priority"`
	Steps       []SeedStep `toml:"step"`
}

type SeedStep struct {
	ID          string `toml:"id"`
	Instruction string `toml:"instruction"`
}

// LoadSeed reads and validates a seed file
func LoadSeed(path string) (*SeedData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read seed file", goerr.V("path", path))
	}

	var seed SeedData
	if err := toml.Unmarshal(data, &seed); err != nil {
		return nil, goerr.Wrap(err, "failed to parse seed file", goerr.V("path", path))
	}

	if err := seed.Validate(); err != nil {
		return nil, goerr.Wrap(err, "invalid seed file", goerr.V("path", path))
	}

	return &seed, nil
}

// Validate checks referential integrity of the seed data
func (s *SeedData) Validate() error {
	if s.Project.ID == "" {
		return goerr.New("project id is required")
	}

	userIDs := make(map[string]bool)
	for _, u := range s.Users {
		if u.ID == "" {
			return goerr.New("user id is required")
		}
		if userIDs[u.ID] {
			return goerr.New("duplicate user ID", goerr.V("id", u.ID))
		}
		userIDs[u.ID] = true
	}
	for _, m := range s.Project.Members {
		if !userIDs[m] {
			return goerr.New("project member is not a seeded user", goerr.V("id", m))
		}
	}

	releaseIDs := make(map[string]bool)
	for _, r := range s.Releases {
		if r.ID == "" {
			return goerr.New("release id is required")
		}
		if releaseIDs[r.ID] {
			return goerr.New("duplicate release ID", goerr.V("id", r.ID))
		}
		releaseIDs[r.ID] = true
	}

	storyIDs := make(map[string]bool)
	for _, story := range s.Stories {
		if story.ID == "" {
			return goerr.New("story id is required")
		}
		if storyIDs[story.ID] {
			return goerr.New("duplicate story ID", goerr.V("id", story.ID))
		}
		storyIDs[story.ID] = true

		if !releaseIDs[story.Release] {
			return goerr.New("story references unknown release",
				goerr.V("story_id", story.ID), goerr.V("release_id", story.Release))
		}

		stepIDs := make(map[string]bool)
		for _, step := range story.Steps {
			if step.ID == "" {
				return goerr.New("step id is required", goerr.V("story_id", story.ID))
			}
			if stepIDs[step.ID] {
				return goerr.New("duplicate step ID",
					goerr.V("story_id", story.ID), goerr.V("step_id", step.ID))
			}
			stepIDs[step.ID] = true
		}
	}

	return nil
}
