package flows

import (
	"github.com/MrEthical07/sessionkit/jwt"
)

// ValidateResult returns either access claims or a classified failure.
type ValidateResult struct {
	Failure FailureKind
	Err     error
	Claims  *jwt.Claims
}

// ValidateDeps captures access validation dependencies.
type ValidateDeps struct {
	Codec TokenCodec
}

// RunValidate verifies an access token. Access tokens are stateless: no
// store lookup happens here.
func RunValidate(tokenStr string, deps ValidateDeps) ValidateResult {
	claims, err := deps.Codec.VerifyKind(tokenStr, jwt.KindAccess)
	if err != nil {
		return ValidateResult{Failure: classifyTokenError(err), Err: err}
	}
	return ValidateResult{Claims: claims}
}
