package cedrus

import "time"

// nowUnix returns the current time as Unix seconds, matching
// types.Project's CreatedAt/UpdatedAt representation.
func nowUnix() int64 {
	return time.Now().Unix()
}
