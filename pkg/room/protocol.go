package room

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Control messages travel as JSON text frames; video travels as binary
// frames with a fixed 12-byte header (track number, width, height, all
// big-endian uint32) followed by the I420 planes.

const (
	msgJoin              = "join"
	msgParticipantJoined = "participant_joined"
	msgParticipantLeft   = "participant_left"
	msgTrackSubscribed   = "track_subscribed"
	msgData              = "data"

	frameHeaderSize = 12
)

type participantInfo struct {
	ID       string `json:"id"`
	Identity string `json:"identity,omitempty"`
}

type trackInfo struct {
	ID   string `json:"id"`
	Num  uint32 `json:"num"`
	Kind string `json:"kind"`
}

type controlMessage struct {
	Type        string           `json:"type"`
	Room        string           `json:"room,omitempty"`
	Token       string           `json:"token,omitempty"`
	Participant *participantInfo `json:"participant,omitempty"`
	Track       *trackInfo       `json:"track,omitempty"`
	Payload     []byte           `json:"payload,omitempty"`
	Reliable    bool             `json:"reliable,omitempty"`
}

func decodeControl(data []byte) (controlMessage, error) {
	var msg controlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return controlMessage{}, fmt.Errorf("decode control message: %w", err)
	}
	if msg.Type == "" {
		return controlMessage{}, fmt.Errorf("control message missing type")
	}
	return msg, nil
}

// decodeVideoFrame splits a binary frame into its track number and I420 data.
func decodeVideoFrame(data []byte) (uint32, Frame, error) {
	if len(data) < frameHeaderSize {
		return 0, Frame{}, fmt.Errorf("binary frame is %d bytes, want at least %d", len(data), frameHeaderSize)
	}
	trackNum := binary.BigEndian.Uint32(data[0:4])
	width := int(binary.BigEndian.Uint32(data[4:8]))
	height := int(binary.BigEndian.Uint32(data[8:12]))

	lumaSize := width * height
	chromaSize := lumaSize / 4
	planes := data[frameHeaderSize:]
	if width <= 0 || height <= 0 || len(planes) != lumaSize+2*chromaSize {
		return 0, Frame{}, fmt.Errorf("binary frame payload is %d bytes for %dx%d", len(planes), width, height)
	}

	frame := Frame{
		Width:  width,
		Height: height,
		Y:      planes[:lumaSize],
		Cb:     planes[lumaSize : lumaSize+chromaSize],
		Cr:     planes[lumaSize+chromaSize:],
	}
	if err := frame.Validate(); err != nil {
		return 0, Frame{}, err
	}
	return trackNum, frame, nil
}

// encodeVideoFrame is the inverse of decodeVideoFrame; used by tests and
// simulators.
func encodeVideoFrame(trackNum uint32, frame Frame) []byte {
	buf := make([]byte, frameHeaderSize, frameHeaderSize+len(frame.Y)+len(frame.Cb)+len(frame.Cr))
	binary.BigEndian.PutUint32(buf[0:4], trackNum)
	binary.BigEndian.PutUint32(buf[4:8], uint32(frame.Width))
	binary.BigEndian.PutUint32(buf[8:12], uint32(frame.Height))
	buf = append(buf, frame.Y...)
	buf = append(buf, frame.Cb...)
	buf = append(buf, frame.Cr...)
	return buf
}
