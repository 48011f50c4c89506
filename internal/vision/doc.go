// Package vision is the adapter for a hosted card-detection model.
//
// The service receives a downscaled JPEG of the photo and answers with card
// rectangles in the uploaded image's coordinates. Client maps them back to the
// source image and reports them as detection.Candidate values with method
// ai-vision, so the pipeline can treat the service like any local detector.
//
// Usage:
//
//	client, err := vision.NewClient(
//	    vision.WithBaseURL("https://vision.example.com"),
//	    vision.WithAPIKey(key),
//	    vision.WithTimeout(8*time.Second),
//	)
//	cands, err := client.Detect(ctx, raster.View(), "binder-page.jpg")
//
// The client performs a single request per call and never retries.
package vision
