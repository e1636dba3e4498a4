package identity

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-featuregate/gate"
	"github.com/goliatone/go-featuregate/gate/guard"
)

// FeatureLoginOTP gates the two-factor login branch: when enabled,
// Login issues an OTP session and withholds the Auth session until
// VerifyOTP succeeds.
const FeatureLoginOTP = "identity.login.otp"

func normalizeFeatureGateError(err error) error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return err
	}

	return goerrors.Wrap(err, goerrors.CategoryAuthz, "Feature gate check failed").
		WithCode(goerrors.CodeForbidden)
}

func requireFeatureGate(ctx context.Context, featureGate gate.FeatureGate, key string, disabledErr error) error {
	return guard.Require(ctx, featureGate, key,
		guard.WithDisabledError(disabledErr),
		guard.WithErrorMapper(normalizeFeatureGateError),
	)
}

// otpLoginEnabled resolves the OTP branch. A nil gate or resolution
// failure falls back to the password-only flow.
func otpLoginEnabled(ctx context.Context, featureGate gate.FeatureGate, logger Logger) bool {
	if featureGate == nil {
		return false
	}

	enabled, err := featureGate.Enabled(ctx, FeatureLoginOTP)
	if err != nil {
		if logger == nil {
			logger = defLogger{}
		}
		logger.Warn("feature gate resolution failed, OTP login disabled: %v", err)
		return false
	}

	return enabled
}
