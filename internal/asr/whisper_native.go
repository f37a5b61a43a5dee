//go:build whispercpp

package asr

/*
#cgo CFLAGS: -I${SRCDIR}/../../third_party/whisper.cpp/include -I${SRCDIR}/../../third_party/whisper.cpp/ggml/include
#cgo LDFLAGS: -L${SRCDIR}/../../third_party/whisper.cpp/build/src -Wl,-rpath,${SRCDIR}/../../third_party/whisper.cpp/build/src -lwhisper -lstdc++ -lm

#include <stdlib.h>
#include "whisper.h"
*/
import "C"

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"voicekb/internal/logging"
)

const whisperSampleRate = 16000

// Whisper runs whisper.cpp in process. Calls are serialised; a whisper
// context is not safe for concurrent use.
type Whisper struct {
	mu  sync.Mutex
	ctx *C.struct_whisper_context
	log *zap.SugaredLogger
}

// NewWhisper loads a ggml model file.
func NewWhisper(modelPath string, sampleRate int, log *zap.SugaredLogger) (*Whisper, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("asr: whisper model path required")
	}
	if sampleRate != whisperSampleRate {
		return nil, fmt.Errorf("asr: whisper needs %d Hz audio, capture is configured for %d Hz", whisperSampleRate, sampleRate)
	}
	cPath := C.CString(modelPath)
	defer C.free(unsafe.Pointer(cPath))
	params := C.whisper_context_default_params()
	params.use_gpu = C.bool(false)

	ctx := C.whisper_init_from_file_with_params(cPath, params)
	if ctx == nil {
		return nil, fmt.Errorf("asr: failed to load whisper model %s", modelPath)
	}
	w := &Whisper{ctx: ctx, log: logging.OrNop(log).Named("whisper")}
	w.log.Infow("whisper model loaded", "path", modelPath)
	return w, nil
}

// Recognize implements Recognizer.
func (w *Whisper) Recognize(ctx context.Context, samples []float32, language string) (string, error) {
	if len(samples) == 0 {
		return "", nil
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx == nil {
		return "", fmt.Errorf("asr: whisper context closed")
	}

	params := C.whisper_full_default_params(C.WHISPER_SAMPLING_GREEDY)
	params.print_progress = C.bool(false)
	params.print_realtime = C.bool(false)
	params.print_timestamps = C.bool(false)
	params.translate = C.bool(false)
	params.no_context = C.bool(true)
	params.n_threads = C.int(runtime.NumCPU())
	lang := strings.TrimSpace(language)
	if lang == "" {
		lang = "auto"
	}
	cLang := C.CString(lang)
	defer C.free(unsafe.Pointer(cLang))
	params.language = cLang

	if ret := C.whisper_full(w.ctx, params, (*C.float)(unsafe.Pointer(&samples[0])), C.int(len(samples))); ret != 0 {
		return "", fmt.Errorf("asr: whisper_full failed with code %d", int(ret))
	}

	var b strings.Builder
	n := int(C.whisper_full_n_segments(w.ctx))
	for i := 0; i < n; i++ {
		b.WriteString(C.GoString(C.whisper_full_get_segment_text(w.ctx, C.int(i))))
	}
	return strings.TrimSpace(b.String()), nil
}

// Close frees the model.
func (w *Whisper) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.ctx != nil {
		C.whisper_free(w.ctx)
		w.ctx = nil
	}
	return nil
}
