// Package bedrock provides a Backend that reaches models through the
// Amazon Bedrock runtime InvokeModel API.
//
// Request and response bodies are produced by the converse codecs; this
// package only moves bytes and maps service errors onto the converse error
// taxonomy. Credentials come from the default AWS chain (environment,
// shared config, instance role).
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
	"github.com/mhpenta/converse"
)

// DefaultRegion is used when neither the config nor the environment names one.
const DefaultRegion = "us-east-1"

const contentTypeJSON = "application/json"

// InvokeModelAPI is the subset of the bedrockruntime client used here.
type InvokeModelAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// Invoker implements converse.Invoker over InvokeModel.
type Invoker struct {
	api    InvokeModelAPI
	logger *slog.Logger
}

// NewInvoker wraps an InvokeModel client.
func NewInvoker(api InvokeModelAPI, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{api: api, logger: logger}
}

// Invoke posts body to the model and returns the raw response body.
func (i *Invoker) Invoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	out, err := i.api.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		Body:        body,
		ContentType: aws.String(contentTypeJSON),
		Accept:      aws.String(contentTypeJSON),
	})
	if err != nil {
		err = mapError(ctx, modelID, err)
		i.logger.Debug("bedrock invoke failed", "model", modelID, "error", err)
		return nil, err
	}
	return out.Body, nil
}

// mapError converts SDK errors into RateLimitError or InferenceError.
// Deadline errors are returned unchanged for the client to classify.
func mapError(ctx context.Context, modelID string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return err
	}

	var throttled *types.ThrottlingException
	if errors.As(err, &throttled) {
		return &converse.RateLimitError{
			RetryAfter: 60 * time.Second, // Bedrock does not send Retry-After
			LimitType:  "requests",
			Model:      modelID,
			Err:        err,
		}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		status := 0
		var respErr *awshttp.ResponseError
		if errors.As(err, &respErr) {
			status = respErr.HTTPStatusCode()
		}
		return converse.NewRemoteFailure(apiErr.ErrorMessage(), status, err)
	}

	return err
}

// Backend serves Bedrock-hosted chat and image models.
type Backend struct {
	*converse.Client
	images *converse.ImageClient
	models []converse.ModelInfo
}

// Ensure Backend implements the interfaces.
var (
	_ converse.Backend        = (*Backend)(nil)
	_ converse.Converser      = (*Backend)(nil)
	_ converse.ImageGenerator = (*Backend)(nil)
	_ converse.Invoker        = (*Invoker)(nil)
)

type options struct {
	region string
	logger *slog.Logger
	api    InvokeModelAPI
	models []converse.ModelInfo
}

// Option configures New.
type Option func(*options)

// WithRegion overrides the AWS region.
func WithRegion(region string) Option {
	return func(o *options) {
		o.region = region
	}
}

// WithLogger sets the logger used by the backend.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithAPI supplies an InvokeModel client instead of loading AWS config.
func WithAPI(api InvokeModelAPI) Option {
	return func(o *options) {
		o.api = api
	}
}

// WithModels replaces the advertised model list.
func WithModels(models ...converse.ModelInfo) Option {
	return func(o *options) {
		o.models = models
	}
}

// New creates a Backend. config may be nil; its Region is used unless
// WithRegion is given.
func New(ctx context.Context, cfg *converse.ProviderConfig, opts ...Option) (*Backend, error) {
	o := &options{
		logger: slog.Default(),
		models: DefaultModels(),
	}
	if cfg != nil {
		o.region = cfg.Region
	}
	for _, opt := range opts {
		opt(o)
	}

	if o.api == nil {
		loadOpts := []func(*config.LoadOptions) error{}
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		if awsCfg.Region == "" {
			awsCfg.Region = DefaultRegion
		}
		o.api = bedrockruntime.NewFromConfig(awsCfg)
		o.logger.Debug("bedrock client ready", "region", awsCfg.Region)
	}

	invoker := NewInvoker(o.api, o.logger)
	return &Backend{
		Client: converse.NewClient(invoker, converse.WithClientLogger(o.logger)),
		images: converse.NewImageClient(invoker, converse.WithClientLogger(o.logger)),
		models: o.models,
	}, nil
}

// Generate creates images with an SDXL or Titan model.
func (b *Backend) Generate(ctx context.Context, prompt string, cfg *converse.ImageConfig) (*converse.ImageResult, error) {
	return b.images.Generate(ctx, prompt, cfg)
}

// Models returns the model definitions supported by this backend.
// The first model (Claude 3 Sonnet) is the default.
func (b *Backend) Models() []converse.ModelInfo {
	return b.models
}

// Close releases any resources held by the backend.
func (b *Backend) Close() error {
	// The SDK client holds no resources that need releasing.
	return nil
}
