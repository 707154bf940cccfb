package detector

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"gocv.io/x/gocv"
)

const serviceScript = "face_service.py"

// ServiceDetector implements Detector using a Python dlib subprocess that
// returns 68-point landmarks and a 128-d encoding per face.
type ServiceDetector struct {
	config    Config
	encoder   Encoder
	log       *zap.Logger
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    *bufio.Reader
	mu        sync.Mutex
	started   bool
	lastUsed  time.Time
	idleTimer *time.Timer
}

// NewServiceDetector creates a new subprocess-backed detector.
// The Python process is started lazily on first detection.
func NewServiceDetector(config Config, log *zap.Logger) (*ServiceDetector, error) {
	if findServiceScript(config.ScriptPath) == "" {
		return nil, fmt.Errorf("%s not found", serviceScript)
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &ServiceDetector{
		config: config,
		log:    log,
	}, nil
}

// SetEncoder replaces the service-provided encodings with the given encoder's output.
func (d *ServiceDetector) SetEncoder(enc Encoder) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.encoder = enc
}

// Detect analyzes a frame and returns the largest detected face.
func (d *ServiceDetector) Detect(frame *gocv.Mat) (*Face, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if frame == nil || frame.Empty() {
		return nil, nil
	}

	if err := d.ensureStarted(); err != nil {
		return nil, err
	}

	buf, err := gocv.IMEncode(".jpg", *frame)
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := buf.GetBytes()

	// Write length (4 bytes big-endian) + data
	length := make([]byte, 4)
	binary.BigEndian.PutUint32(length, uint32(len(data)))

	if _, err := d.stdin.Write(length); err != nil {
		return nil, fmt.Errorf("write length: %w", err)
	}
	if _, err := d.stdin.Write(data); err != nil {
		return nil, fmt.Errorf("write data: %w", err)
	}

	line, err := d.stdout.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	faces, err := parseServiceResponse([]byte(line))
	if err != nil {
		return nil, err
	}

	d.lastUsed = time.Now()
	d.resetIdleTimer()

	face := largest(faces)
	if face == nil {
		return nil, nil
	}

	if d.encoder != nil {
		enc, err := d.encoder.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("encode face: %w", err)
		}
		face.Encoding = enc
	}

	return face, nil
}

// Close shuts down the Python process and the optional encoder.
func (d *ServiceDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.encoder != nil {
		if err := d.encoder.Close(); err != nil {
			d.log.Warn("closing encoder", zap.Error(err))
		}
	}
	return d.shutdown()
}

func (d *ServiceDetector) ensureStarted() error {
	if d.started {
		return nil
	}

	scriptPath := findServiceScript(d.config.ScriptPath)
	if scriptPath == "" {
		return fmt.Errorf("%s not found", serviceScript)
	}

	pythonPath := d.config.Python
	if pythonPath == "" {
		pythonPath = findVenvPython()
	}
	if pythonPath == "" {
		pythonPath = "python3"
	}

	d.cmd = exec.Command(pythonPath, scriptPath, "--upsample", strconv.Itoa(d.config.Upsample))

	stdin, err := d.cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("create stdin pipe: %w", err)
	}

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("create stdout pipe: %w", err)
	}

	d.cmd.Stderr = os.Stderr

	if err := d.cmd.Start(); err != nil {
		return fmt.Errorf("start face service: %w", err)
	}

	d.stdin = stdin
	d.stdout = bufio.NewReader(stdout)
	d.started = true
	d.lastUsed = time.Now()

	d.log.Info("face service started", zap.String("script", scriptPath), zap.String("python", pythonPath))
	return nil
}

func (d *ServiceDetector) shutdown() error {
	if !d.started {
		return nil
	}

	if d.idleTimer != nil {
		d.idleTimer.Stop()
		d.idleTimer = nil
	}

	if d.stdin != nil {
		d.stdin.Close()
	}

	err := d.cmd.Wait()
	d.started = false
	d.cmd = nil
	d.stdin = nil
	d.stdout = nil

	return err
}

func (d *ServiceDetector) resetIdleTimer() {
	if d.idleTimer != nil {
		d.idleTimer.Stop()
	}
	idle := time.Duration(d.config.IdleTimeoutSec) * time.Second
	if idle <= 0 {
		return
	}
	d.idleTimer = time.AfterFunc(idle, func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		if err := d.shutdown(); err != nil {
			d.log.Debug("face service idle shutdown", zap.Error(err))
		}
	})
}

func findServiceScript(explicit string) string {
	if explicit != "" {
		if _, err := os.Stat(explicit); err == nil {
			return explicit
		}
		return ""
	}

	execPath, err := os.Executable()
	var execDir string
	if err == nil {
		execDir = filepath.Dir(execPath)
	}

	candidates := []string{
		filepath.Join("scripts", serviceScript),
		filepath.Join("..", "scripts", serviceScript),
		filepath.Join(execDir, "scripts", serviceScript),
		filepath.Join(os.Getenv("HOME"), ".mukha", "scripts", serviceScript),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// findVenvPython looks for a Python interpreter in a virtual environment.
func findVenvPython() string {
	execPath, err := os.Executable()
	if err != nil {
		return ""
	}
	execDir := filepath.Dir(execPath)

	candidates := []string{
		"venv/bin/python",
		"../venv/bin/python",
		filepath.Join(execDir, "venv/bin/python"),
		filepath.Join(os.Getenv("HOME"), ".mukha/venv/bin/python"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			absPath, err := filepath.Abs(path)
			if err == nil {
				return absPath
			}
			return path
		}
	}
	return ""
}

// jsonFace represents one face in the service's JSON response.
type jsonFace struct {
	Box       [4]int       `json:"box"` // x1, y1, x2, y2
	Landmarks [][2]float64 `json:"landmarks"`
	Encoding  []float64    `json:"encoding"`
	Score     float64      `json:"score"`
}

type serviceResponse struct {
	Faces []jsonFace `json:"faces"`
	Error string     `json:"error,omitempty"`
}

func parseServiceResponse(line []byte) ([]Face, error) {
	var resp serviceResponse
	if err := json.Unmarshal(line, &resp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("face service: %s", resp.Error)
	}

	faces := make([]Face, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		if len(f.Landmarks) != NumLandmarks {
			// Partial landmark sets cannot drive the eye metrics.
			continue
		}
		faces = append(faces, f.toFace())
	}
	return faces, nil
}

func (f jsonFace) toFace() Face {
	face := Face{
		Box:      image.Rect(f.Box[0], f.Box[1], f.Box[2], f.Box[3]),
		Encoding: f.Encoding,
		Score:    f.Score,
	}
	for i := 0; i < NumLandmarks; i++ {
		face.Landmarks[i] = Point{X: f.Landmarks[i][0], Y: f.Landmarks[i][1]}
	}
	return face
}

// Open builds the configured detector: the face service, with its encodings
// replaced by the dlib recognizer when cfg.Encoder is "dlib".
func Open(cfg Config, log *zap.Logger) (*ServiceDetector, error) {
	d, err := NewServiceDetector(cfg, log)
	if err != nil {
		return nil, err
	}

	switch cfg.Encoder {
	case "", EncoderService:
	case EncoderDlib:
		enc, err := NewDlibEncoder(cfg.ModelsDir)
		if err != nil {
			return nil, err
		}
		d.SetEncoder(enc)
	default:
		return nil, fmt.Errorf("unknown encoder %q", cfg.Encoder)
	}
	return d, nil
}
