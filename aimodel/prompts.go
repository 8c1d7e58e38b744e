package aimodel

import "strings"

// =============================================================================
// ✍️ 提示词模板
// =============================================================================

// PromptTemplate 带命名占位符的提示词模板，占位符形如 {topic}。
type PromptTemplate string

// Render 用给定的变量替换占位符。未提供的占位符保持原样，
// 便于上层发现缺失字段。
func (t PromptTemplate) Render(vars map[string]string) string {
	out := string(t)
	for k, v := range vars {
		out = strings.ReplaceAll(out, "{"+k+"}", v)
	}
	return out
}

// ComprehensiveCreation 一次性生成完整内容方案（标题/正文/标签）。
const ComprehensiveCreation PromptTemplate = `你是一个专业的新媒体内容创作专家，请根据以下主题和要求，一次性生成完整的内容方案：

主题：{topic}
平台：{platform}
风格：{style}
目标受众：{audience}
内容长度：{length}
关键字：{keywords}
特殊要求：{requirements}

请按以下格式生成完整的内容方案：

【标题】
生成3个不同风格的标题选项，每个标题都要：
- 吸引眼球，激发点击欲望
- 符合{platform}平台的特点
- 包含关键字：{keywords}
- 避免标题党，内容要有价值

【正文】
创建一篇完整的{length}内容，包括：
- 开头：吸引注意力的引言
- 主体：3-5个核心观点，每个观点要有具体例子或论据
- 结尾：总结和行动号召
- 确保内容符合{style}风格
- 自然融入关键字：{keywords}
- 针对{audience}的兴趣点

【推荐标签】
推荐5-8个相关的标签（hashtag），要求：
- 与主题高度相关
- 符合{platform}平台习惯
- 包含热门和细分标签的组合
- 有助于内容传播和发现

请确保整个内容方案连贯统一，标题、正文和标签都围绕同一个主题展开。`

// ContentRewrite 对既有内容做保义改写。
const ContentRewrite PromptTemplate = `你是一个专业的内容编辑，请对以下内容进行改写，保持核心观点不变但改变表达方式：

原内容：{original_content}
改写类型：{rewrite_type}
改写强度：{rewrite_strength}
目标平台：{platform}
目标受众：{audience}
风格要求：{style}
长度要求：{length_requirement}
关键字：{keywords}
特殊要求：{requirements}

改写要求：
1. 保持原文的核心观点和主要信息
2. 根据改写类型调整表达方式与格式
3. 按改写强度控制结构调整幅度
4. 确保内容的原创性和可读性
5. 符合{platform}平台的风格特点
6. 自然融入关键字：{keywords}
7. 针对{audience}的阅读习惯和兴趣点

请提供改写后的内容：`
