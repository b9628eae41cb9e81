// Package validation checks pipeline requests, queue payloads and config
// sections.
//
// Struct tags are evaluated with go-playground/validator. Two domain tags are
// registered on top of the built-in set: caption_format (srt or vtt) and
// asset_id (letters, digits, dot, dash and underscore).
//
//	type Request struct {
//	    Source string `validate:"required"`
//	    Format string `validate:"omitempty,caption_format"`
//	}
//	err := validation.Validate(req)
//
// Sections that are easier to check by hand use the collecting Validator:
//
//	v := validation.New()
//	v.Positive("bitrate", cfg.Bitrate).OneOf("format", cfg.Format, formats)
//	return v.Err()
package validation
