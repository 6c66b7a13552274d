package domain

import "fmt"

// State はプロンプト生成リクエストのライフサイクル状態です。
type State int

const (
	StateIdle State = iota
	StateImageReady
	StateGenerating
	StateSuccess
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateImageReady: "image_ready",
	StateGenerating: "generating",
	StateSuccess:    "success",
	StateFailed:     "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// MarshalText は JSON 出力で状態名を使うために実装しています。
func (s State) MarshalText() ([]byte, error) {
	name, ok := stateNames[s]
	if !ok {
		return nil, fmt.Errorf("unknown state: %d", int(s))
	}
	return []byte(name), nil
}

// UnmarshalText は状態名から State を復元します。
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state: %q", string(text))
}
