package services

import (
	"context"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
)

// ModerationService screens submitted photos with Rekognition before they
// reach the vision model. This is a kids app: anything Rekognition flags is
// rejected outright.
type ModerationService struct {
	client        *rekognition.Client
	minConfidence float32
}

func NewModerationService() (*ModerationService, error) {
	cfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithRegion(os.Getenv("AWS_REGION")))
	if err != nil {
		return nil, err
	}
	return &ModerationService{
		client:        rekognition.NewFromConfig(cfg),
		minConfidence: 75,
	}, nil
}

// Moderate returns flagged=true with a kid-friendly reason when the photo
// carries any moderation label above the confidence floor.
func (m *ModerationService) Moderate(ctx context.Context, jpegData []byte) (bool, string, error) {
	out, err := m.client.DetectModerationLabels(ctx, &rekognition.DetectModerationLabelsInput{
		Image:         &types.Image{Bytes: jpegData},
		MinConfidence: aws.Float32(m.minConfidence),
	})
	if err != nil {
		return false, "", err
	}

	var labels []string
	for _, l := range out.ModerationLabels {
		if l.Name != nil {
			labels = append(labels, *l.Name)
		}
	}
	if len(labels) == 0 {
		return false, "", nil
	}
	return true, "This photo isn't suitable for the app (" + strings.Join(labels, ", ") + "). Please take a different photo.", nil
}
