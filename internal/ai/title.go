package ai

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"aisuite/internal/model/conversation"
)

// UntitledTitle 没有可用文字时的标题
const UntitledTitle = "Untitled"

// TitleSystemPrompt 标题生成的系统提示词
const TitleSystemPrompt = "Your task is to generate a single title for the given content. " +
	"Identify the language of the content and generate a title that is relevant to the content. " +
	"The title should be concise and informative. The title should be no more than 64 characters long. " +
	"Even though the given summary is in list form, the title should not be a list. " +
	"Generate the title as if it were for a blog post or news article on the topic. " +
	"Don't generate variations of the same title with different tones or styles."

// TitleAssistantPrefill 助手回复的前缀
const TitleAssistantPrefill = "Title:"

var (
	titleWordsPattern   = regexp.MustCompile(`(?:[\p{L}\p{N}_]+(?:[^\p{L}\p{N}_]+|$)){0,100}`)
	leadingNonWordRunes = regexp.MustCompile(`^[^\p{L}\p{N}_]+`)
)

const (
	titleFallbackRunes = 400
)

// TitleSeed 截取前 100 个单词作为生成标题的种子文本
// 匹配不到单词时退回前 400 个字符
func TitleSeed(content string) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	words := leadingNonWordRunes.ReplaceAllString(content, "")
	if seed := strings.TrimSpace(titleWordsPattern.FindString(words)); seed != "" {
		return seed
	}

	if utf8.RuneCountInString(content) <= titleFallbackRunes {
		return content
	}
	return string([]rune(content)[:titleFallbackRunes])
}

// TitleUserPrompt 把种子文本包装成用户消息
func TitleUserPrompt(seed string) string {
	return "Summarize the text delimited by triple quotes in one sentence by using same language. \"\"\"" + seed + "\"\"\""
}

// TitleInstructPrompt 单轮补全模型使用的 prompt
func TitleInstructPrompt(seed string) string {
	return TitleSystemPrompt + " The content is delimited by triple quotes. \"\"\"" + seed + "\"\"\""
}

// NormalizeTitle 取第一行，去掉首尾空白与引号，截断到 255 个字符
func NormalizeTitle(raw string) string {
	line := raw
	if i := strings.IndexAny(line, "\r\n"); i >= 0 {
		line = line[:i]
	}
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, TitleAssistantPrefill)
	line = strings.Trim(line, " \"'“”")
	if line == "" {
		return UntitledTitle
	}
	return conversation.TruncateTitle(line)
}
