package bot

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Raks-kmt/kaishou/internal/domain"
	"github.com/Raks-kmt/kaishou/internal/session"
)

// All texts use Telegram's legacy Markdown mode. Literal underscores are
// escaped, user-supplied values pass through escapeMD.

const helpText = `🆘 *Help & Support Center*

📖 *Basic Usage:*
1. Kuaishou app mein video open karein
2. Share → Copy Link
3. Yahan link paste karein
4. Video automatically download ho jayega!

🎯 *Advanced Features:*
• Multiple quality options (360p to 1080p)
• Fast download speed
• Automatic thumbnail support
• File size optimization

⚡ *Quick Commands:*
• /quality - Video quality change karein
• /stats - Apne downloads dekhein
• /help - Yeh message dikhayein
• /tutorial - Step-by-step guide

🔧 *Troubleshooting:*
• Agar video download na ho to different link try karein
• Internet connection strong hona chahiye
• Video publicly available hona chahiye
• Sirf individual video links kaam karte hain

📞 *Support:*
Agar koi problem ho to directly video link bhej kar try karein!`

const tutorialText = `📹 *Step-by-Step Tutorial*

🎯 *Sahi Video Link Kaise Lein:*

1. *Kuaishou App Kholain*
   - Kuaishou app open karein
   - Koi bhi video play karein

2. *Share Button Dabain*
   - Video ke right side mein share button hai
   - Share icon (↗️) par click karein

3. *Copy Link Select Karein*
   - Share options mein "Copy Link" choose karein
   - Link automatically copy ho jayega

4. *Yahan Paste Karein*
   - Yahan woh link paste karein
   - Video download start ho jayega

⚠️ *Common Mistakes:*
- ❌ Homepage link (www.kuaishou.com) - Kaam nahi karega
- ❌ Profile link - Kaam nahi karega
- ❌ Feed link - Kaam nahi karega
- ✅ Individual video link - Kaam karega

🔍 *Example of Working Links:*
- https://v.kuaishou.com/AbC123XyZ
- https://www.kuaishou.com/short-video/123456789
- ksy://video/123456789

🚀 *Abhi koi video open karke try karein!*`

const invalidLinkText = `❌ *Invalid Kuaishou Video Link!*

Kripya sahi Kuaishou VIDEO link bhejein.

⚠️ *Ye Links Kaam Nahi Karte:*
• Kuaishou homepage (www.kuaishou.com)
• Profile links
• Feed/recommendation links

📝 *Examples of Working Links:*
• https://v.kuaishou.com/KybGvmoV
• https://www.kuaishou.com/short-video/123456789
• ksy://video123

📹 Step-by-step guide ke liye /tutorial type karein

Kuaishou app mein share button se 'Copy Link' karein.`

const notVideoLinkText = `❌ *Yeh Video Link Nahi Hai!*

Aapne Kuaishou ki homepage, profile ya feed link bheji hai.

🎯 *Sahi Video Link Kaise Lein:*
1. Kuaishou app mein koi video kholain
2. Share button (↗️) dabain
3. 'Copy Link' select karein
4. Yahan paste karein

📹 Detailed guide ke liye /tutorial type karein`

const processingText = `🔄 *Processing Your Request...*

📡 Checking video availability...
⏳ Please wait...`

const analysisText = `🔍 *Video Analysis Started...*

📹 Extracting video information...
⚡ This may take a few seconds...`

const sendingText = `✅ *Download Complete!*

📤 Sending video to you...
⚡ Almost done!`

const successText = `🎉 *Download Successful!*

✅ Video successfully downloaded and sent!

🔄 Agar aur videos download karna hai to simply links bhejte rahein!

🌟 Thank you for using our service!`

const noVideoFoundText = `❌ *Yeh Video Link Nahi Hai!*

Link mein koi video nahi mili.

🤔 *Possible Reasons:*
• Aapne homepage/feed link bheja hai
• Video private ya deleted hai
• Link invalid hai

🎯 *Solution:*
1. Kuaishou app mein koi specific video open karein
2. Share → Copy Link karein
3. Woh link yahan paste karein

📹 Agar confusion hai to /tutorial dekhein`

const unexpectedErrorText = `❌ *Unexpected Error Occurred!*

System ne unexpected error report kiya hai.

Kripya:
• Thodi der wait karein
• Phir se try karein
• Agar problem continue ho to different link try karein

We're working to fix this automatically.`

const systemErrorText = `❌ *System Error!*

Kuch technical problem aayi hai. Kripya thodi der baad phir try karein.

Agar problem continue ho to /help command use karein.`

func welcomeMessage(firstName string) string {
	return fmt.Sprintf(`🎬 *Namaste %s! Welcome to Kuaishou Video Downloader* 🎬

🤖 *Meri Specialities:*
• ✅ Full HD 1080p Quality
• ✅ One-Click Download
• ✅ Fast & Reliable
• ✅ 24/7 Available
• ✅ All Kuaishou Links Supported

📱 *Kaise Use Karein:*
1. Kuaishou app mein koi bhi video kholain
2. Share button dabain
3. "Copy Link" select karein
4. Yahan link paste karein

🔗 *Supported Links:*
• v.kuaishou.com/...
• www.kuaishou.com/...
• ksy://...
• Aur sabhi Kuaishou links

⚠️ *Important:*
• Sirf individual video links kaam karte hain
• Homepage/feed links kaam nahi karte
• Video publicly available hona chahiye

⚙ *Commands:*
• /start - Bot start karein
• /help - Help dekhein
• /quality - Video quality set karein
• /stats - Apna statistics dekhein
• /tutorial - Video download kaise karein

🚀 *Abhi koi bhi Kuaishou video link bhej kar try karein!*`, escapeMD(firstName))
}

func qualityMenu(current domain.Quality) string {
	return fmt.Sprintf(`🎯 *Video Quality Settings*

Current Quality: *%s*

Available Options:
• 🥇 /set\_quality\_best - Best Available (Auto)
• 🖥 /set\_quality\_1080 - Full HD (1080p)
• 📺 /set\_quality\_720 - HD Ready (720p)
• 📱 /set\_quality\_480 - Standard (480p)
• 💫 /set\_quality\_360 - Basic (360p)

💡 *Recommendation:*
• Best - Sabse recommended (Auto adjust)
• 1080p - Highest quality (Data zyada use karega)
• 360p - Fast download (Kam data use karega)`, strings.ToUpper(string(current)))
}

func qualityConfirmation(q domain.Quality) string {
	switch q {
	case domain.Quality1080:
		return "✅ *Quality Set to: 1080p FULL HD*\n\nAb aapko highest quality videos milenge!"
	case domain.Quality720:
		return "✅ *Quality Set to: 720p HD*\n\nAb aapko HD quality videos milenge!"
	case domain.Quality480:
		return "✅ *Quality Set to: 480p STANDARD*\n\nAb aapko standard quality videos milenge!"
	case domain.Quality360:
		return "✅ *Quality Set to: 360p BASIC*\n\nAb aapko fast download with basic quality milegi!"
	default:
		return "✅ *Quality Set to: BEST*\n\nAb aapko sabse best available quality milegi!"
	}
}

func statsCard(firstName string, userID int64, sess session.Session) string {
	return fmt.Sprintf(`📊 *User Statistics*

👤 User: %s
🆔 ID: %d
📥 Total Downloads: %d
🎯 Current Quality: %s
🕒 Last Active: %s

🌟 *Thanks for using our service!*`,
		escapeMD(firstName),
		userID,
		sess.Downloads,
		strings.ToUpper(string(sess.Quality)),
		sess.LastActivity.Format("2006-01-02 15:04:05"),
	)
}

func downloadStartingMessage(meta *domain.VideoMetadata, q domain.Quality) string {
	return fmt.Sprintf(`📥 *Download Starting...*

🎬 Title: %s
⏱ Duration: %d seconds
🎯 Quality: %s
👤 Uploader: %s

⏳ Downloading please wait...`,
		escapeMD(truncateRunes(meta.Title, 50)),
		meta.Duration,
		strings.ToUpper(string(q)),
		escapeMD(meta.Uploader),
	)
}

func captionFor(result *domain.DownloadResult, handle string) string {
	sizeMB := float64(result.Size) / (1024 * 1024)
	return fmt.Sprintf(`🎥 *%s*

⏱ Duration: %d seconds
🎯 Quality: %s
📊 Size: %.2f MB
👤 Uploader: %s
🔗 %s

⭐ Downloaded successfully!`,
		escapeMD(result.Meta.Title),
		result.Meta.Duration,
		strings.ToUpper(string(result.Quality)),
		sizeMB,
		escapeMD(result.Meta.Uploader),
		escapeMD(handle),
	)
}

func accessFailedMessage(err error) string {
	return fmt.Sprintf(`❌ *Video Access Failed!*

Error: %s

Kripya:
• Different video ka link try karein
• Thodi der baad try karein
• Internet connection check karein`, errorLine(err))
}

func downloadFailedMessage(err error) string {
	return fmt.Sprintf(`❌ *Download Failed!*

Error: %s

Kripya:
• Different link try karein
• Thodi der baad try karein
• Internet connection check karein`, errorLine(err))
}

func tooLargeMessage(maxFileSize int64) string {
	return fmt.Sprintf(`❌ *Video Bahut Badi Hai!*

Video file %d MB limit se zyada hai, Telegram bot se send nahi ho sakti.

Kripya:
• /set\_quality\_480 ya /set\_quality\_360 set karke try karein
• Chhoti aur short video try karein`, maxFileSize/(1024*1024))
}

// failureMessage picks the reply for a terminal download failure. Exactly
// one reply per failure; the caller edits it into the progress message.
func failureMessage(err error, maxFileSize int64) string {
	switch {
	case errors.Is(err, domain.ErrFileTooLarge):
		return tooLargeMessage(maxFileSize)
	case errors.Is(err, domain.ErrNoMediaURL):
		return noVideoFoundText
	}

	switch domain.KindOfFailure(err) {
	case domain.FailureResolution:
		return accessFailedMessage(err)
	case domain.FailureFetch:
		return downloadFailedMessage(err)
	default:
		return unexpectedErrorText
	}
}

// errorLine renders an error chain for embedding in a failure card.
func errorLine(err error) string {
	return escapeMD(truncateRunes(err.Error(), 160))
}

func escapeMD(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
