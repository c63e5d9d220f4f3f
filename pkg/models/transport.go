package models

// OptionsRequest overrides fields of the configured recognition options. Nil
// fields keep the server default.
type OptionsRequest struct {
	MinPlateSize *int     `json:"min_plate_size,omitempty"`
	MaxPlateSize *int     `json:"max_plate_size,omitempty"`
	DetectMode   *int     `json:"detect_mode,omitempty"`
	MaxTextSize  *int     `json:"max_text_size,omitempty"`
	TypeNumber   *int     `json:"type_number,omitempty"`
	Flags        *int     `json:"flags,omitempty"`
	Version      *string  `json:"version,omitempty"`
	Alpha        *float64 `json:"alpha,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`
	Gamma        *float64 `json:"gamma,omitempty"`
	MaxThreads   *int     `json:"max_threads,omitempty"`
}

// RecognizeRequest asks for a one-shot recognition of the image at URL.
type RecognizeRequest struct {
	URL     string          `json:"url" binding:"required,url"`
	Options *OptionsRequest `json:"options,omitempty"`
}

// BatchRecognizeRequest recognizes several images concurrently.
type BatchRecognizeRequest struct {
	URLs    []string        `json:"urls" binding:"required,min=1,max=64,dive,url"`
	Options *OptionsRequest `json:"options,omitempty"`
}

// SegmentRequest is a counting line from (X1,Y1) to (X2,Y2) in frame pixels.
type SegmentRequest struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// LinesRequest configures both counting lines of a session.
type LinesRequest struct {
	A SegmentRequest `json:"a"`
	B SegmentRequest `json:"b"`
}

// OpenSessionRequest creates a streaming session. Nil limits keep the server default.
type OpenSessionRequest struct {
	Options            *OptionsRequest `json:"options,omitempty"`
	MaxFrames          *int            `json:"max_frames,omitempty"`
	MinFramesWithPlate *int            `json:"min_frames_with_plate,omitempty"`
	FramesWithoutPlate *int            `json:"frames_without_plate,omitempty"`
	MaxPlatesInMem     *int            `json:"max_plates_in_mem,omitempty"`
	Lines              *LinesRequest   `json:"lines,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Kind    string `json:"kind,omitempty"`
}
