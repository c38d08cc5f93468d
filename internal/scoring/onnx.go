package scoring

import (
	"fmt"
	"runtime"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"FxPilot/internal/domain/models"
)

var ortInit sync.Once

// InitializeORT points the runtime at the shared library and initializes the
// environment. libPath may be empty to use the platform default.
func InitializeORT(libPath string) error {
	var err error
	ortInit.Do(func() {
		if libPath == "" {
			libPath = "/usr/lib/libonnxruntime.so"
			if runtime.GOOS == "windows" {
				libPath = "onnxruntime.dll"
			} else if runtime.GOOS == "darwin" {
				libPath = "libonnxruntime.dylib"
			}
		}
		ort.SetSharedLibraryPath(libPath)
		err = ort.InitializeEnvironment()
	})
	return err
}

// Model wraps one instrument's exported classifier. The graph follows the
// sklearn-to-ONNX convention: a "float_input" tensor of shape [1, n] and an
// int64 "label" output of shape [1].
type Model struct {
	mu      sync.Mutex
	session *ort.AdvancedSession
	input   *ort.Tensor[float32]
	output  *ort.Tensor[int64]
}

func NewModel(modelPath string) (*Model, error) {
	inputShape := ort.NewShape(1, models.FeatureCount)
	inputData := make([]float32, models.FeatureCount)
	inputTensor, err := ort.NewTensor(inputShape, inputData)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}

	outputTensor, err := ort.NewEmptyTensor[int64](ort.NewShape(1))
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("create output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{"float_input"}, []string{"label"},
		[]ort.Value{inputTensor}, []ort.Value{outputTensor}, nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("create session: %w", err)
	}

	return &Model{
		session: session,
		input:   inputTensor,
		output:  outputTensor,
	}, nil
}

// Score runs inference on one feature vector and returns the binary label.
func (m *Model) Score(features []float64) (int, error) {
	if len(features) != models.FeatureCount {
		return 0, fmt.Errorf("expected %d features, got %d", models.FeatureCount, len(features))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	data := m.input.GetData()
	for i, f := range features {
		data[i] = float32(f)
	}
	if err := m.session.Run(); err != nil {
		return 0, fmt.Errorf("inference failed: %w", err)
	}
	label := m.output.GetData()[0]
	if label != 0 && label != 1 {
		return 0, fmt.Errorf("non-binary label %d", label)
	}
	return int(label), nil
}

func (m *Model) Close() {
	if m.session != nil {
		m.session.Destroy()
	}
	if m.input != nil {
		m.input.Destroy()
	}
	if m.output != nil {
		m.output.Destroy()
	}
}
