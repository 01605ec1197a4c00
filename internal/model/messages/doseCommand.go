package messages

// DoseCommand is a manual dose request consumed from the command topic.
// The tower is carried in the topic path.
type DoseCommand struct {
	Solution string  `json:"solution"`
	VolumeML float64 `json:"volume_ml"`
	Reason   string  `json:"reason"`
}
