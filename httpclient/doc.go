// Package httpclient is the HTTP transport used by the transcription
// backends. It handles base URLs, default headers, authentication, JSON
// and multipart bodies, and classifies failures by status code.
//
// Retry and circuit breaking are not done here; callers wrap the backend
// with provider.WithResilience so the policy is applied once per chunk.
//
//	c, err := httpclient.New(httpclient.Config{
//	    BaseURL: "https://api.openai.com/v1",
//	    Timeout: 5 * time.Minute,
//	    Auth:    httpclient.BearerAuth(apiKey),
//	})
//
//	resp, err := c.Do(ctx, httpclient.Request{
//	    Method: http.MethodPost,
//	    Path:   "/audio/transcriptions",
//	    Body:   &httpclient.MultipartBody{...},
//	})
package httpclient
