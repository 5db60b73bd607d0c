package types

// StoryStatus represents the latest aggregated status of a release story
// on the dashboard. It extends ExecutionStatus with "untested" for stories
// that have no execution history at all.
type StoryStatus string

const (
	StoryStatusUntested        StoryStatus = "untested"
	StoryStatusInProgress      StoryStatus = StoryStatus(ExecutionStatusInProgress)
	StoryStatusPass            StoryStatus = StoryStatus(ExecutionStatusPass)
	StoryStatusFail            StoryStatus = StoryStatus(ExecutionStatusFail)
	StoryStatusPartiallyTested StoryStatus = StoryStatus(ExecutionStatusPartiallyTested)
	StoryStatusCantBeTested    StoryStatus = StoryStatus(ExecutionStatusCantBeTested)
)

// String returns the string representation of the story status
func (s StoryStatus) String() string {
	return string(s)
}
