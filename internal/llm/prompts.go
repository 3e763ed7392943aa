package llm

import (
	"fmt"
	"strings"

	"github.com/lithammer/dedent"
)

// styleModifiers is the closing clause every composed prompt ends with.
const styleModifiers = "studio lighting, clean background, high-end fashion catalog, 8k uhd, sharp focus"

const modelAnalysisPrompt = `
	Analyze this photograph of a fashion model for a virtual try-on system.

	Describe the person so that a later image edit can keep them unchanged:
	- bodyType: build and proportions
	- skinTone: skin tone and undertone
	- hairStyle: cut, length and styling
	- hairColor
	- pose: body orientation, arm and leg positions, head angle and tilt
	- currentClothing: one entry per body region with what is worn there. bodyPartId must be one of: %s. Set isPresent to false when nothing is worn in that region.
	- distinctiveFeatures: tattoos, jewellery, facial hair or anything else that must be preserved
	- background: setting, colours and lighting

	Write every descriptive value in %s. Keep bodyPartId values exactly as listed.
	Respond ONLY with the JSON object.`

const clothingAnalysisPrompt = `
	Analyze this garment image for a virtual try-on system.

	The user placed it in the "%s" slot (%s). Treat the slot as a hint: keep it when the image agrees with it, but when the garment clearly belongs to another body region, report the correct region instead. For example, shoes placed in the head slot must be classified as feet.

	Fields:
	- type: the kind of garment, e.g. jeans, blazer, sneakers
	- category: broader group, e.g. trousers, outerwear, footwear
	- bodyPartId: one of %s
	- color, material, pattern, style, fit
	- details: notable construction details such as buttons, zips, pockets, prints, hems

	Write every descriptive value in %s. Keep bodyPartId values exactly as listed.
	Respond ONLY with the JSON object.`

const composerSystemInstruction = `
	You are an expert prompt engineer for an image editing model that dresses a person in new clothes.

	You receive a JSON description of the model photo and of every garment. The descriptions may be written in another language; write the final prompt in %s only.

	Structure the prompt like this:
	1. Subject: one sentence describing the person.
	2. Retention: keep the face, identity, body shape, skin tone, hairstyle, pose and background exactly as they are unless a garment requires a change.
	3. Replacements: for every garment write "Replace the [current clothing on <bodyPartId>] with [<new garment description>]".
	4. User modifiers: when a garment has a userCustomModifier you MUST incorporate it into that garment's description. It takes priority over the analysis whenever the two conflict. Example: the analysis says "jeans, ankle length" and the modifier says "floor-length", so describe "floor-length jeans" and never the ankle length.
	5. Layering: when both torso_inner and torso_outer garments are present, state explicitly that the torso_inner garment is worn underneath the torso_outer garment.
	6. End with: "%s".

	Output only the prompt text. No markdown, no explanations.`

const tryOnConstraints = `
	Hard constraints:
	- Keep the exact pose, framing, arm and leg positions, head angle and tilt of image 1.
	- Keep the face, identity, skin tone, hairstyle and hair colour of image 1 pixel-faithful.
	- Keep the background of image 1 unchanged.
	- Copy each garment's colour, material, texture and pattern faithfully from its image.
	- Layer garments correctly: inner tops are worn underneath outerwear.
	- Photorealistic 8K detail with natural fabric folds and lighting consistent with image 1.`

const poseInstructionTemplate = `
	Generate a professional E-COMMERCE / FASHION CATALOG image of the model from image 1 wearing the garments shown in the other images.

	Pose and style: %s

	Outfit description:
	%s

	Constraints:
	- Keep the face, identity, skin tone, hairstyle and hair colour of image 1.
	- Copy each garment's colour, material, texture and pattern faithfully from its image.
	- Layer garments correctly: inner tops are worn underneath outerwear.
	- Photorealistic 8K detail.`

// formatPrompt dedents a prompt template and fills in its arguments.
func formatPrompt(text string, a ...any) string {
	return fmt.Sprintf(strings.TrimSpace(dedent.Dedent(text)), a...)
}

// stripCodeFence removes a markdown code fence wrapped around model output.
func stripCodeFence(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	return strings.TrimSpace(text)
}
