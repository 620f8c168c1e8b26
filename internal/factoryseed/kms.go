package factoryseed

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSBacked unwraps a sealed factory-seed blob via AWS KMS. On real
// hardware this stands in for reading the OTP fuse bank through a
// privileged driver call; here the "fuse" is a ciphertext blob that only
// the TA's KMS key can decrypt, giving the same "accessible only inside
// the enclave" property spec §4.3 requires without needing real silicon.
type KMSBacked struct {
	kms          *kms.Client
	ciphertext   []byte
	expectedSize int
}

// NewKMSBacked creates a KMSBacked source. If localStackEndpoint is
// non-empty, the client targets that endpoint with dummy credentials for
// local development, mirroring internal/kms/client.go in the teacher.
func NewKMSBacked(ctx context.Context, region, localStackEndpoint string, sealedCiphertext []byte) (*KMSBacked, error) {
	var opts []func(*config.LoadOptions) error
	opts = append(opts, config.WithRegion(region))

	if localStackEndpoint != "" {
		opts = append(opts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "test")),
		)
	}

	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("factoryseed: load aws config: %w", err)
	}

	var kmsOpts []func(*kms.Options)
	if localStackEndpoint != "" {
		kmsOpts = append(kmsOpts, func(o *kms.Options) {
			o.BaseEndpoint = aws.String(localStackEndpoint)
		})
	}

	return &KMSBacked{
		kms:          kms.NewFromConfig(cfg, kmsOpts...),
		ciphertext:   sealedCiphertext,
		expectedSize: Size,
	}, nil
}

// FactorySeed decrypts the sealed ciphertext via KMS. The plaintext is
// returned to the caller (internal/entropy), which is responsible for
// sealing it immediately and never persisting a plain copy.
func (k *KMSBacked) FactorySeed(ctx context.Context) ([]byte, error) {
	out, err := k.kms.Decrypt(ctx, &kms.DecryptInput{
		CiphertextBlob: k.ciphertext,
	})
	if err != nil {
		return nil, fmt.Errorf("factoryseed: kms decrypt: %w", err)
	}
	if len(out.Plaintext) != k.expectedSize {
		return nil, fmt.Errorf("factoryseed: unexpected plaintext size %d", len(out.Plaintext))
	}
	return out.Plaintext, nil
}
