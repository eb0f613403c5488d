package ffmpeg

import "testing"

const sampleProbe = `{
  "streams": [
    {"codec_name": "mjpeg", "codec_type": "video", "width": 600, "height": 600,
     "avg_frame_rate": "0/0", "disposition": {"attached_pic": 1}},
    {"codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080,
     "avg_frame_rate": "30000/1001", "r_frame_rate": "30000/1001", "disposition": {"attached_pic": 0}},
    {"codec_name": "aac", "codec_type": "audio", "sample_rate": "48000"}
  ],
  "format": {"format_name": "mov,mp4,m4a,3gp,3g2,mj2", "duration": "12.512000"}
}`

func TestParseProbeJSON(t *testing.T) {
	pr, err := ParseProbeJSON([]byte(sampleProbe))
	if err != nil {
		t.Fatalf("ParseProbeJSON() error = %v", err)
	}
	if pr.Duration != 12.512 {
		t.Errorf("Duration = %v", pr.Duration)
	}
	if pr.Width != 1920 || pr.Height != 1080 || pr.VideoCodec != "h264" {
		t.Errorf("video = %dx%d %s, cover art should be skipped", pr.Width, pr.Height, pr.VideoCodec)
	}
	if pr.FrameRate != (Rational{Num: 30000, Den: 1001}) {
		t.Errorf("FrameRate = %v", pr.FrameRate)
	}
	if !pr.HasVideo || !pr.HasAudio || pr.AudioCodec != "aac" {
		t.Errorf("stream flags = %+v", pr)
	}
}

func TestParseProbeJSON_AudioOnlyStreamDuration(t *testing.T) {
	data := `{"streams":[{"codec_type":"audio","codec_name":"mp3","duration":"181.2"}],"format":{"duration":"N/A"}}`
	pr, err := ParseProbeJSON([]byte(data))
	if err != nil {
		t.Fatalf("ParseProbeJSON() error = %v", err)
	}
	if pr.HasVideo || !pr.HasAudio {
		t.Errorf("flags = video %v audio %v", pr.HasVideo, pr.HasAudio)
	}
	if pr.Duration != 181.2 {
		t.Errorf("Duration = %v, want stream duration 181.2", pr.Duration)
	}
}

func TestParseProbeJSON_Invalid(t *testing.T) {
	if _, err := ParseProbeJSON([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestParseRational(t *testing.T) {
	tests := []struct {
		in      string
		want    Rational
		wantErr bool
	}{
		{"30000/1001", Rational{30000, 1001}, false},
		{"25/1", Rational{25, 1}, false},
		{"24", Rational{24, 1}, false},
		{" 60 / 1 ", Rational{60, 1}, false},
		{"0/0", Rational{}, false},
		{"", Rational{}, true},
		{"__import__('os')", Rational{}, true},
		{"30/x", Rational{}, true},
		{"-30/1", Rational{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRational(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseRational(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseRational(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestRationalFloat(t *testing.T) {
	r := Rational{Num: 30000, Den: 1001}
	if f := r.Float(); f < 29.97 || f > 29.98 {
		t.Errorf("Float() = %v", f)
	}
	if (Rational{}).Float() != 0 {
		t.Error("zero rational should be 0")
	}
}
