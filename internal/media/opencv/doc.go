// Package opencv provides capture and recording through OpenCV (gocv),
// mirroring cv::VideoCapture / cv::VideoWriter. The real implementation is
// compiled with -tags gocv; without it the backend registers but every
// call returns an error.
package opencv

// BackendName is the config value selecting this backend
const BackendName = "opencv"
