package models

// Stats are aggregate usage numbers. They are rebuilt on every fetch.
type Stats struct {
	TotalFilesServed  int64 `json:"totalFilesServed"`
	TotalFileSize     int64 `json:"totalFileSize"`
	UserUploadsNumber int64 `json:"userUploadsNumber"`
	UserUploadsSize   int64 `json:"userUploadsSize"`
}

// UserSizeShare is the user's share of stored bytes, in percent.
func (s Stats) UserSizeShare() float64 {
	return percent(s.UserUploadsSize, s.TotalFileSize)
}

// UserCountShare is the user's share of stored files, in percent.
func (s Stats) UserCountShare() float64 {
	return percent(s.UserUploadsNumber, s.TotalFilesServed)
}

func percent(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
