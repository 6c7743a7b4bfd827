package tencent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/regions"
	tmt "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tmt/v20180321"

	"lyricsync/internal/lyrics"
	"lyricsync/pkg/music"
)

// 单次请求的 SourceText 上限是 6000 字符，留出余量
const maxBatchRunes = 1800

var logger = log.With().Str("component", "tencent-tmt").Logger()

var _ music.Translator = (*Translator)(nil)

type tmtAPI interface {
	LanguageDetectWithContext(ctx context.Context, request *tmt.LanguageDetectRequest) (*tmt.LanguageDetectResponse, error)
	TextTranslateWithContext(ctx context.Context, request *tmt.TextTranslateRequest) (*tmt.TextTranslateResponse, error)
}

// Translator 用腾讯云机器翻译补全歌词翻译
type Translator struct {
	tmtClient tmtAPI
	target    string
}

// NewTranslator region 为空时使用广州
func NewTranslator(secretID, secretKey, region, target string) (*Translator, error) {
	if secretID == "" || secretKey == "" {
		return nil, errors.New("tencent cloud credentials are required")
	}
	credential := common.NewCredential(secretID, secretKey)

	cpf := profile.NewClientProfile()
	cpf.HttpProfile.ReqMethod = "POST"
	cpf.HttpProfile.ReqTimeout = 10
	cpf.HttpProfile.Endpoint = "tmt.tencentcloudapi.com"

	if region == "" {
		region = regions.Guangzhou
	}
	tmtClient, err := tmt.NewClient(credential, region, cpf)
	if err != nil {
		log.Error().Err(err).Msg("new tencent client error")
		return nil, err
	}
	return newTranslator(tmtClient, target), nil
}

func newTranslator(api tmtAPI, target string) *Translator {
	if target == "" {
		target = "zh"
	}
	return &Translator{tmtClient: api, target: target}
}

// Translate 为没有翻译的歌词行补充翻译
// 歌词本身已经是目标语言时原样返回
func (t *Translator) Translate(ctx context.Context, set lyrics.SyncedLyricSet) (lyrics.SyncedLyricSet, error) {
	var missing []int
	for i, line := range set.Lines {
		if line.Translation == "" {
			missing = append(missing, i)
		}
	}
	if len(missing) == 0 {
		return set, nil
	}

	sample := make([]string, 0, 8)
	for _, i := range missing[:min(len(missing), 8)] {
		sample = append(sample, set.Lines[i].Text)
	}
	lang, err := t.detect(ctx, strings.Join(sample, "\n"))
	if err != nil {
		return set, err
	}
	if lang == t.target {
		logger.Debug().Str("lang", lang).Msg("Lyrics already in target language")
		return set, nil
	}

	out := set
	out.Lines = make([]lyrics.Line, len(set.Lines))
	copy(out.Lines, set.Lines)

	translated := 0
	for _, batch := range batches(set.Lines, missing) {
		texts := make([]string, len(batch))
		for j, i := range batch {
			texts[j] = out.Lines[i].Text
		}
		result, err := t.translate(ctx, lang, strings.Join(texts, "\n"))
		if err != nil {
			return set, err
		}
		parts := strings.Split(result, "\n")
		if len(parts) != len(batch) {
			logger.Warn().Int("want", len(batch)).Int("got", len(parts)).Msg("Translation line count mismatch, dropping batch")
			continue
		}
		for j, i := range batch {
			out.Lines[i].Translation = strings.TrimSpace(parts[j])
		}
		translated += len(batch)
	}

	logger.Info().Str("source", lang).Str("target", t.target).Int("lines", translated).Msg("Lyrics translated")
	return out, nil
}

func (t *Translator) detect(ctx context.Context, text string) (string, error) {
	request := tmt.NewLanguageDetectRequest()
	request.Text = common.StringPtr(text)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.tmtClient.LanguageDetectWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("language detect: %w", err)
	}
	if response.Response == nil || response.Response.Lang == nil {
		return "", errors.New("language detect: empty response")
	}
	return *response.Response.Lang, nil
}

func (t *Translator) translate(ctx context.Context, source, text string) (string, error) {
	request := tmt.NewTextTranslateRequest()
	request.SourceText = common.StringPtr(text)
	request.Source = common.StringPtr(source)
	request.Target = common.StringPtr(t.target)
	request.ProjectId = common.Int64Ptr(0)

	response, err := t.tmtClient.TextTranslateWithContext(ctx, request)
	if err != nil {
		return "", fmt.Errorf("text translate: %w", err)
	}
	if response.Response == nil || response.Response.TargetText == nil {
		return "", errors.New("text translate: empty response")
	}
	return *response.Response.TargetText, nil
}

// batches 按字符数把待翻译的行分组
func batches(lines []lyrics.Line, indexes []int) [][]int {
	var out [][]int
	var cur []int
	size := 0
	for _, i := range indexes {
		n := len([]rune(lines[i].Text)) + 1
		if len(cur) > 0 && size+n > maxBatchRunes {
			out = append(out, cur)
			cur, size = nil, 0
		}
		cur = append(cur, i)
		size += n
	}
	if len(cur) > 0 {
		out = append(out, cur)
	}
	return out
}
