package models

// These structs define the JSON payloads exchanged with HTTP clients and
// the storage event trigger.

// ProcessResponse is returned once an envelope has been uploaded.
type ProcessResponse struct {
	Message string `json:"message"`
	S3Key   string `json:"s3_key"`
}

// ErrorResponse is the failure body of the file upload route.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DetailResponse is the failure body of the URL route and of request validation.
type DetailResponse struct {
	Detail string `json:"detail"`
}

// ProcessURLRequest is the optional JSON body of the URL route.
type ProcessURLRequest struct {
	URL string `json:"url"`
}

// GCSEvent is the payload of a GCS object finalize event.
type GCSEvent struct {
	Bucket string `json:"bucket"`
	Name   string `json:"name"`
}
