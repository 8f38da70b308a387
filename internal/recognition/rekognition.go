package recognition

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rtypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// ErrEmptyFrame is returned when a frame has no image bytes.
var ErrEmptyFrame = errors.New("frame is empty")

// DetectTextAPI is the slice of the Rekognition client the recognizer uses.
type DetectTextAPI interface {
	DetectText(ctx context.Context, in *rekognition.DetectTextInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectTextOutput, error)
}

// FrameRecognizer reads text off still frames with Rekognition DetectText.
type FrameRecognizer struct {
	api           DetectTextAPI
	minConfidence float32
	logger        *log.Logger
}

func NewFrameRecognizer(api DetectTextAPI, minConfidence float32, logger *log.Logger) *FrameRecognizer {
	return &FrameRecognizer{api: api, minConfidence: minConfidence, logger: logger}
}

// NewRekognition builds a recognizer on the default AWS credential chain.
func NewRekognition(ctx context.Context, region string, minConfidence float32, logger *log.Logger) (*FrameRecognizer, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewFrameRecognizer(rekognition.NewFromConfig(cfg), minConfidence, logger), nil
}

// Candidates returns every LINE and WORD detection at or above the
// confidence floor, upper-cased with spaces removed, in detection order and
// without duplicates.
func (r *FrameRecognizer) Candidates(ctx context.Context, image []byte) ([]string, error) {
	if len(image) == 0 {
		return nil, ErrEmptyFrame
	}

	out, err := r.api.DetectText(ctx, &rekognition.DetectTextInput{
		Image: &rtypes.Image{Bytes: image},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition DetectText: %w", err)
	}

	seen := make(map[string]bool)
	var texts []string
	for _, d := range out.TextDetections {
		if d.Type != rtypes.TextTypesLine && d.Type != rtypes.TextTypesWord {
			continue
		}
		if d.DetectedText == nil || d.Confidence == nil || *d.Confidence < r.minConfidence {
			continue
		}
		txt := strings.ToUpper(strings.ReplaceAll(*d.DetectedText, " ", ""))
		if txt == "" || seen[txt] {
			continue
		}
		seen[txt] = true
		texts = append(texts, txt)
	}
	r.logger.Printf("rekognition: %d detections, %d candidates", len(out.TextDetections), len(texts))
	return texts, nil
}
